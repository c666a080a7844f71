package supervisor

import (
	"context"
	"io"
	"os"
	"time"
)

// Launcher starts a miner process.
type Launcher interface {
	Start(ctx context.Context, d *Descriptor, out io.Writer) (Process, error)
}

// Process is a started child process.
type Process interface {
	// Pid of the child, which is also its process group id.
	Pid() int
	// Wait blocks until the child exits and returns its exit code. A child
	// killed by a signal reports -1.
	Wait() (int, error)
	// Signal delivers sig to the process group of the child.
	Signal(sig os.Signal) error
}

// Sink provides the output writer of each launch. The writer is closed once
// the child has exited.
type Sink interface {
	Attach() (io.WriteCloser, error)
}

// Descriptor describes what a Runner launches. It is immutable once the
// runner has started.
type Descriptor struct {
	// Name of the miner
	Name string
	// Path is the absolute path of the executable.
	Path string
	// Args does not include the executable.
	Args []string
	// Dir is the working directory of the child.
	Dir string
	// Env is appended to the environment of the parent.
	Env []string
	// User is a UNIX User used for impersonation.
	User string
}

// Policy controls relaunches.
type Policy struct {
	// Delay between an exit and the next launch.
	Delay time.Duration
	// MaxDelay enables exponential backoff when greater than Delay.
	MaxDelay time.Duration
	// StopTimeout bounds the wait after SIGTERM on shutdown. Zero waits forever.
	StopTimeout time.Duration
}

type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseWaiting  Phase = "waiting"
	PhaseStopped  Phase = "stopped"
)

// State is a snapshot of a runner.
type State struct {
	Name     string    `json:"name"`
	Phase    Phase     `json:"phase"`
	Pid      int       `json:"pid,omitempty"`
	LaunchID string    `json:"launchId,omitempty"`
	Started  time.Time `json:"startedAt,omitempty"`
	// Launches counts every attempt, successful or not.
	Launches     int       `json:"launches"`
	Restarts     int       `json:"restarts"`
	LastExitCode *int      `json:"lastExitCode,omitempty"`
	LastExit     time.Time `json:"lastExitAt,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	NextLaunch   time.Time `json:"nextLaunchAt,omitempty"`
}
