package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/squarefactory/minerd/supervisor"
)

var log = logging.Logger("executor")

// outputGrace bounds how long Wait keeps copying output once the miner has
// exited, in case a forked helper still holds the pipe.
const outputGrace = 5 * time.Second

// Exec starts miners as direct children, each in its own process group.
type Exec struct{}

// Start launches the descriptor with stdout and stderr both sent to out.
//
// The child is not bound to ctx: stopping it is up to the caller, through
// Signal, so that it gets a chance to exit cleanly.
func (*Exec) Start(_ context.Context, d *supervisor.Descriptor, out io.Writer) (supervisor.Process, error) {
	c := exec.Command(d.Path, d.Args...)
	c.Dir = d.Dir
	c.Stdout = out
	c.Stderr = out
	c.WaitDelay = outputGrace
	if len(d.Env) > 0 {
		c.Env = append(os.Environ(), d.Env...)
	}
	c.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	if d.User != "" {
		uid, gid, err := lookupUser(d.User)
		if err != nil {
			return nil, err
		}
		// Set the user ID for the command
		c.SysProcAttr.Credential = &syscall.Credential{
			Uid: uid,
			Gid: gid,
		}
	}

	log.Debugw("exec", "args", c.Args, "dir", c.Dir, "user", d.User)
	if err := c.Start(); err != nil {
		return nil, xerrors.Errorf("starting %s: %w", d.Path, err)
	}
	return &child{cmd: c}, nil
}

type child struct {
	cmd *exec.Cmd
}

func (c *child) Pid() int {
	return c.cmd.Process.Pid
}

func (c *child) Wait() (int, error) {
	err := c.cmd.Wait()
	code := exitCode(err, c.cmd.ProcessState)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// a non-zero exit is reported through the code
		err = nil
	}
	return code, err
}

// Signal sends sig to the whole process group, so helpers forked by the miner
// go down with it.
func (c *child) Signal(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return c.cmd.Process.Signal(sig)
	}
	err := unix.Kill(-c.cmd.Process.Pid, s)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func exitCode(waitErr error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && exitErr.ProcessState != nil {
		return exitErr.ProcessState.ExitCode()
	}
	return -1
}

func lookupUser(username string) (uint32, uint32, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return 0, 0, err
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, err
	}

	return uint32(uid), uint32(gid), nil
}
