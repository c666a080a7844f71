//go:build unit

package supervisor_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/squarefactory/minerd/mocks"
	"github.com/squarefactory/minerd/supervisor"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const delay = 10 * time.Second

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type RunnerTestSuite struct {
	suite.Suite
	launcher *mocks.Launcher
	sink     *mocks.Sink
	clock    *clock.Mock
	desc     supervisor.Descriptor
}

func (suite *RunnerTestSuite) BeforeTest(suiteName, testName string) {
	suite.launcher = mocks.NewLauncher(suite.T())
	suite.sink = mocks.NewSink(suite.T())
	suite.sink.On("Attach").Return(nopWriteCloser{io.Discard}, nil).Maybe()
	suite.clock = clock.NewMock()

	path := filepath.Join(suite.T().TempDir(), "miner")
	suite.Require().NoError(os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	suite.desc = supervisor.Descriptor{
		Name: "gpu",
		Path: path,
		Args: []string{"--algo", "kawpow"},
	}
}

func (suite *RunnerTestSuite) newRunner(policy supervisor.Policy) *supervisor.Runner {
	return supervisor.NewRunner(
		suite.desc,
		suite.launcher,
		suite.sink,
		policy,
		supervisor.WithClock(suite.clock),
	)
}

// blockingProcess exits with code once exit is closed, or on SIGTERM.
func (suite *RunnerTestSuite) blockingProcess(pid int, code int, exit chan struct{}) *mocks.Process {
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(pid).Maybe()
	proc.On("Wait").Run(func(mock.Arguments) { <-exit }).Return(code, nil).Once()
	proc.On("Signal", syscall.SIGTERM).Run(func(mock.Arguments) { close(exit) }).Return(nil).Maybe()
	return proc
}

func (suite *RunnerTestSuite) start(r *supervisor.Runner) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	return cancel, done
}

func (suite *RunnerTestSuite) waitFor(r *supervisor.Runner, cond func(s supervisor.State) bool) {
	suite.Require().Eventually(func() bool {
		return cond(r.State())
	}, 5*time.Second, 5*time.Millisecond)
}

func (suite *RunnerTestSuite) TestRelaunchAfterDelay() {
	// Arrange
	exit1 := make(chan struct{})
	exit2 := make(chan struct{})
	proc1 := suite.blockingProcess(101, 3, exit1)
	proc2 := suite.blockingProcess(102, 0, exit2)
	suite.launcher.On("Start", mock.Anything, mock.MatchedBy(func(d *supervisor.Descriptor) bool {
		return d.Path == suite.desc.Path
	}), mock.Anything).Return(proc1, nil).Once()
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc2, nil).Once()
	r := suite.newRunner(supervisor.Policy{Delay: delay})

	// Act
	cancel, done := suite.start(r)
	defer cancel()
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseRunning && s.Pid == 101
	})
	exitedAt := suite.clock.Now()
	close(exit1)

	// Assert
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseWaiting
	})
	state := r.State()
	suite.Require().NotNil(state.LastExitCode)
	suite.Equal(3, *state.LastExitCode)
	suite.Equal(exitedAt.Add(delay), state.NextLaunch)
	suite.Equal(0, state.Restarts)

	suite.clock.Add(delay - time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	suite.launcher.AssertNumberOfCalls(suite.T(), "Start", 1)

	suite.clock.Add(time.Millisecond)
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseRunning && s.Pid == 102
	})
	state = r.State()
	suite.Equal(1, state.Restarts)
	suite.Equal(2, state.Launches)
	suite.Equal(exitedAt.Add(delay), state.Started)

	cancel()
	suite.NoError(<-done)
	proc2.AssertCalled(suite.T(), "Signal", syscall.SIGTERM)
	suite.Equal(supervisor.PhaseStopped, r.State().Phase)
}

func (suite *RunnerTestSuite) TestRelaunchForever() {
	// Arrange
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(7).Maybe()
	proc.On("Wait").Return(1, nil)
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil)
	r := suite.newRunner(supervisor.Policy{Delay: delay})

	// Act
	cancel, done := suite.start(r)
	defer cancel()
	for i := 1; i <= 20; i++ {
		suite.waitFor(r, func(s supervisor.State) bool {
			return s.Phase == supervisor.PhaseWaiting && s.Launches == i
		})
		suite.clock.Add(delay)
	}

	// Assert
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Launches == 21
	})
	cancel()
	suite.NoError(<-done)
	suite.GreaterOrEqual(r.State().Restarts, 20)
}

func (suite *RunnerTestSuite) TestZeroDelay() {
	// Arrange
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(7).Maybe()
	proc.On("Wait").Return(0, nil)
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil)
	r := suite.newRunner(supervisor.Policy{})

	// Act
	cancel, done := suite.start(r)
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Launches >= 5
	})
	cancel()

	// Assert
	suite.NoError(<-done)
}

func (suite *RunnerTestSuite) TestZeroDelayIgnoresMaxDelay() {
	// Arrange
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(7).Maybe()
	proc.On("Wait").Return(1, nil)
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil)
	r := suite.newRunner(supervisor.Policy{MaxDelay: time.Second})

	// Act
	cancel, done := suite.start(r)
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Launches >= 5
	})
	cancel()

	// Assert
	suite.NoError(<-done)
}

func (suite *RunnerTestSuite) TestStopDuringDelay() {
	// Arrange
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(7).Maybe()
	proc.On("Wait").Return(2, nil).Once()
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil).Once()
	r := suite.newRunner(supervisor.Policy{Delay: time.Hour})

	// Act
	cancel, done := suite.start(r)
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseWaiting
	})
	cancel()

	// Assert
	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(5 * time.Second):
		suite.Fail("runner did not stop during the restart delay")
	}
	suite.launcher.AssertNumberOfCalls(suite.T(), "Start", 1)
	suite.Equal(supervisor.PhaseStopped, r.State().Phase)
}

func (suite *RunnerTestSuite) TestStartFailureIsRetried() {
	// Arrange
	exit := make(chan struct{})
	proc := suite.blockingProcess(42, 0, exit)
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("exec format error")).Once()
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil).Once()
	r := suite.newRunner(supervisor.Policy{Delay: delay})

	// Act
	cancel, done := suite.start(r)
	defer cancel()
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseWaiting
	})
	suite.Equal("exec format error", r.State().LastError)
	suite.clock.Add(delay)

	// Assert
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseRunning && s.Pid == 42
	})
	suite.Empty(r.State().LastError)
	cancel()
	suite.NoError(<-done)
}

func (suite *RunnerTestSuite) TestNotExecutable() {
	// Arrange
	r := suite.newRunner(supervisor.Policy{Delay: delay})
	suite.Require().NoError(os.Chmod(suite.desc.Path, 0o644))

	// Act
	err := r.Run(context.Background())

	// Assert
	suite.ErrorIs(err, supervisor.ErrNotExecutable)
	suite.launcher.AssertNotCalled(suite.T(), "Start", mock.Anything, mock.Anything, mock.Anything)

	suite.Require().NoError(os.Remove(suite.desc.Path))
	suite.ErrorIs(r.Run(context.Background()), supervisor.ErrNotExecutable)
}

func (suite *RunnerTestSuite) TestStopTimeoutKills() {
	// Arrange
	exit := make(chan struct{})
	termSent := make(chan struct{})
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(9).Maybe()
	proc.On("Wait").Run(func(mock.Arguments) { <-exit }).Return(-1, nil).Once()
	proc.On("Signal", syscall.SIGTERM).Run(func(mock.Arguments) { close(termSent) }).Return(nil).Once()
	proc.On("Signal", syscall.SIGKILL).Run(func(mock.Arguments) { close(exit) }).Return(nil).Once()
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil).Once()
	r := suite.newRunner(supervisor.Policy{Delay: delay, StopTimeout: 5 * time.Second})

	// Act
	cancel, done := suite.start(r)
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseRunning
	})
	cancel()
	<-termSent
	suite.Require().Eventually(func() bool {
		suite.clock.Add(time.Second)
		select {
		case <-exit:
			return true
		default:
			return false
		}
	}, 5*time.Second, 5*time.Millisecond)

	// Assert
	suite.NoError(<-done)
	suite.Equal(-1, *r.State().LastExitCode)
}

func (suite *RunnerTestSuite) TestRestart() {
	// Arrange
	exit := make(chan struct{})
	proc := suite.blockingProcess(11, -1, exit)
	next := suite.blockingProcess(12, 0, make(chan struct{}))
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil).Once()
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(next, nil).Once()
	r := suite.newRunner(supervisor.Policy{Delay: delay})
	suite.ErrorIs(r.Restart(), supervisor.ErrNotRunning)

	// Act
	cancel, done := suite.start(r)
	defer cancel()
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseRunning
	})
	suite.NoError(r.Restart())

	// Assert
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseWaiting
	})
	proc.AssertCalled(suite.T(), "Signal", syscall.SIGTERM)
	suite.clock.Add(delay)
	suite.waitFor(r, func(s supervisor.State) bool {
		return s.Phase == supervisor.PhaseRunning && s.Pid == 12
	})
	cancel()
	suite.NoError(<-done)
}

func (suite *RunnerTestSuite) TestBackoff() {
	// Arrange
	proc := mocks.NewProcess(suite.T())
	proc.On("Pid").Return(7).Maybe()
	proc.On("Wait").Return(1, nil)
	suite.launcher.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(proc, nil)
	r := suite.newRunner(supervisor.Policy{Delay: time.Second, MaxDelay: 4 * time.Second})

	// Act
	cancel, done := suite.start(r)
	defer cancel()
	var delays []time.Duration
	for i := 1; i <= 5; i++ {
		suite.waitFor(r, func(s supervisor.State) bool {
			return s.Phase == supervisor.PhaseWaiting && s.Launches == i
		})
		d := r.State().NextLaunch.Sub(suite.clock.Now())
		delays = append(delays, d)
		suite.clock.Add(d)
	}

	// Assert
	suite.Equal([]time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}, delays)
	cancel()
	suite.NoError(<-done)
}

func TestRunnerTestSuite(t *testing.T) {
	suite.Run(t, &RunnerTestSuite{})
}
