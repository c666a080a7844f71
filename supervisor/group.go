package supervisor

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// ErrUnknownMiner is returned by Group.Restart for a name no runner carries.
var ErrUnknownMiner = errors.New("unknown miner")

// Group runs several runners side by side and owns their shutdown: cancelling
// the context given to Run stops every child, and Run only returns once all of
// them have been waited for.
type Group struct {
	runners   []*Runner
	services  []func(ctx context.Context) error
	followers []func(ctx context.Context) error
}

func NewGroup(runners ...*Runner) *Group {
	return &Group{runners: runners}
}

// Go adds a task living as long as the runners, such as the status API. A task
// returning an error stops the whole group.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.services = append(g.services, fn)
}

// Follow adds a task which is cancelled only after every runner has returned,
// so it sees the last output of the children.
func (g *Group) Follow(fn func(ctx context.Context) error) {
	g.followers = append(g.followers, fn)
}

func (g *Group) Runners() []*Runner {
	return g.runners
}

func (g *Group) Runner(name string) (*Runner, bool) {
	for _, r := range g.runners {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// States returns a snapshot of every runner, in order.
func (g *Group) States() []State {
	states := make([]State, 0, len(g.runners))
	for _, r := range g.runners {
		states = append(states, r.State())
	}
	return states
}

func (g *Group) Run(ctx context.Context) error {
	followCtx, stopFollowers := context.WithCancel(context.Background())
	defer stopFollowers()
	var followers errgroup.Group
	for _, fn := range g.followers {
		fn := fn
		followers.Go(func() error {
			return fn(followCtx)
		})
	}

	eg, ectx := errgroup.WithContext(ctx)
	for _, r := range g.runners {
		r := r
		eg.Go(func() error {
			return r.Run(ectx)
		})
	}
	for _, fn := range g.services {
		fn := fn
		eg.Go(func() error {
			return fn(ectx)
		})
	}

	err := eg.Wait()
	stopFollowers()
	err = multierr.Append(err, followers.Wait())
	if err != nil {
		log.Errorw("shutdown complete", "err", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// Restart terminates the child of the named runner, which relaunches it.
func (g *Group) Restart(name string) error {
	r, ok := g.Runner(name)
	if !ok {
		return xerrors.Errorf("%s: %w", name, ErrUnknownMiner)
	}
	return r.Restart()
}
