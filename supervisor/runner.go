package supervisor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jpillora/backoff"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/squarefactory/minerd/metrics"
)

var log = logging.Logger("supervisor")

var (
	// ErrNotExecutable is returned by Run when the descriptor path cannot be executed.
	ErrNotExecutable = errors.New("not an executable file")
	// ErrNotRunning is returned by Restart when no child is alive.
	ErrNotRunning = errors.New("miner is not running")
)

// Runner launches a miner, waits for it to exit and relaunches it after the
// restart delay, forever.
type Runner struct {
	desc     Descriptor
	launcher Launcher
	sink     Sink
	policy   Policy
	clock    clock.Clock
	metrics  *metrics.Metrics

	mu    sync.Mutex
	state State
	proc  Process
}

type Option func(*Runner)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func NewRunner(
	desc Descriptor,
	launcher Launcher,
	sink Sink,
	policy Policy,
	opts ...Option,
) *Runner {
	r := &Runner{
		desc:     desc,
		launcher: launcher,
		sink:     sink,
		policy:   policy,
		clock:    clock.New(),
		state: State{
			Name:  desc.Name,
			Phase: PhaseStopped,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Name() string {
	return r.desc.Name
}

// State returns a snapshot of the supervision state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	if s.LastExitCode != nil {
		code := *s.LastExitCode
		s.LastExitCode = &code
	}
	return s
}

// Restart terminates the current child. It is relaunched after the restart delay.
func (r *Runner) Restart() error {
	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()
	if proc == nil {
		return ErrNotRunning
	}
	log.Infow("restart requested", "miner", r.desc.Name, "pid", proc.Pid())
	return proc.Signal(syscall.SIGTERM)
}

// CheckExecutable returns ErrNotExecutable unless path is a regular file with
// an executable bit.
func CheckExecutable(path string) error {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return xerrors.Errorf("%s: %w", path, ErrNotExecutable)
	}
	if err != nil {
		return xerrors.Errorf("stat %s: %w", path, err)
	}
	if !st.Mode().IsRegular() || st.Mode().Perm()&0o111 == 0 {
		return xerrors.Errorf("%s: %w", path, ErrNotExecutable)
	}
	return nil
}

// Run supervises the miner until ctx is cancelled. On cancellation the child
// receives SIGTERM and Run returns once it has exited.
//
// Run fails only when the executable is missing before the first launch.
func (r *Runner) Run(ctx context.Context) error {
	if err := CheckExecutable(r.desc.Path); err != nil {
		log.Errorw("cannot supervise miner", "miner", r.desc.Name, "err", err)
		return err
	}
	defer r.update(func(s *State) {
		s.Phase = PhaseStopped
		s.Pid = 0
		s.NextLaunch = time.Time{}
	})

	b := r.newBackoff()
	for {
		if ctx.Err() != nil {
			return nil
		}
		started := r.clock.Now()
		r.launch(ctx)
		if ctx.Err() != nil {
			log.Infow("miner stopped", "miner", r.desc.Name)
			return nil
		}

		delay := r.nextDelay(b, r.clock.Since(started))
		if !r.sleep(ctx, delay) {
			return nil
		}
	}
}

// newBackoff returns nil for a fixed delay. A zero Delay stays fixed since
// backoff.Backoff treats a zero Min as 100ms.
func (r *Runner) newBackoff() *backoff.Backoff {
	if r.policy.Delay <= 0 || r.policy.MaxDelay <= r.policy.Delay {
		return nil
	}
	return &backoff.Backoff{
		Min:    r.policy.Delay,
		Max:    r.policy.MaxDelay,
		Factor: 2,
	}
}

func (r *Runner) nextDelay(b *backoff.Backoff, uptime time.Duration) time.Duration {
	if b == nil {
		return r.policy.Delay
	}
	if uptime >= r.policy.MaxDelay {
		b.Reset()
	}
	return b.Duration()
}

// sleep waits for d and reports whether the loop should go on.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := r.clock.Timer(d)
	defer timer.Stop()

	next := r.clock.Now().Add(d)
	r.update(func(s *State) {
		s.Phase = PhaseWaiting
		s.NextLaunch = next
	})
	log.Infow("restarting miner", "miner", r.desc.Name, "delay", d, "at", next.Format(time.RFC3339))

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type exit struct {
	code int
	err  error
}

// launch runs one child to completion.
func (r *Runner) launch(ctx context.Context) {
	launchID := uuid.NewString()
	r.update(func(s *State) {
		s.Phase = PhaseStarting
		s.LaunchID = launchID
		s.NextLaunch = time.Time{}
		if s.Launches > 0 {
			s.Restarts++
		}
		s.Launches++
	})

	out, err := r.sink.Attach()
	if err != nil {
		r.startFailed(err)
		return
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warnw("closing miner output failed", "miner", r.desc.Name, "err", err)
		}
	}()

	proc, err := r.launcher.Start(ctx, &r.desc, out)
	if err != nil {
		r.startFailed(err)
		return
	}
	started := r.clock.Now()
	r.metrics.Launched(r.desc.Name)
	r.update(func(s *State) {
		s.Phase = PhaseRunning
		s.Pid = proc.Pid()
		s.Started = started
		s.LastError = ""
	})
	r.mu.Lock()
	r.proc = proc
	r.mu.Unlock()
	log.Infow("miner started", "miner", r.desc.Name, "pid", proc.Pid(), "launch", launchID, "restarts", r.State().Restarts)

	exited := make(chan exit, 1)
	go func() {
		code, err := proc.Wait()
		exited <- exit{code: code, err: err}
	}()

	var res exit
	select {
	case res = <-exited:
	case <-ctx.Done():
		res = r.stop(proc, exited)
	}

	r.mu.Lock()
	r.proc = nil
	r.mu.Unlock()

	now := r.clock.Now()
	code := res.code
	r.metrics.Exited(r.desc.Name, code)
	r.update(func(s *State) {
		s.Pid = 0
		s.LastExitCode = &code
		s.LastExit = now
		if res.err != nil {
			s.LastError = res.err.Error()
		}
	})
	log.Warnw("miner exited", "miner", r.desc.Name, "code", code, "uptime", now.Sub(started).Round(time.Second), "err", res.err)
}

// stop terminates proc and waits for it. After StopTimeout the process group
// is killed.
func (r *Runner) stop(proc Process, exited <-chan exit) exit {
	log.Infow("stopping miner", "miner", r.desc.Name, "pid", proc.Pid())
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		log.Warnw("sending SIGTERM failed", "miner", r.desc.Name, "err", err)
	}
	if r.policy.StopTimeout <= 0 {
		return <-exited
	}

	timer := r.clock.Timer(r.policy.StopTimeout)
	defer timer.Stop()
	select {
	case res := <-exited:
		return res
	case <-timer.C:
		log.Warnw("miner did not stop in time, killing it", "miner", r.desc.Name, "timeout", r.policy.StopTimeout)
		if err := proc.Signal(syscall.SIGKILL); err != nil {
			log.Warnw("sending SIGKILL failed", "miner", r.desc.Name, "err", err)
		}
		return <-exited
	}
}

func (r *Runner) startFailed(err error) {
	log.Errorw("miner failed to start", "miner", r.desc.Name, "err", err)
	r.metrics.StartFailed(r.desc.Name)
	r.update(func(s *State) {
		s.Pid = 0
		s.LastError = err.Error()
	})
}

func (r *Runner) update(fn func(s *State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
}
