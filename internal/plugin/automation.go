package plugin

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/pkg/params"
)

// DefaultLaneSteps is the number of writes per automation period.
const DefaultLaneSteps = 40

// Lane plays a triangle wave into one parameter the way a host automation
// lane would. Writes made while a user gesture is open are refused by the
// parameter and skipped.
type Lane struct {
	param  *params.Parameter
	period time.Duration
	steps  int
	logger *slog.Logger

	writes  atomic.Int64
	refused atomic.Int64
}

// LaneOption configures a Lane.
type LaneOption func(*Lane)

// WithLaneLogger sets the logger.
func WithLaneLogger(l *slog.Logger) LaneOption {
	return func(a *Lane) {
		a.logger = l
	}
}

// WithLaneSteps sets the number of writes per period.
func WithLaneSteps(n int) LaneOption {
	return func(a *Lane) {
		if n > 1 {
			a.steps = n
		}
	}
}

// NewLane creates a lane over param with the given period.
func NewLane(param *params.Parameter, period time.Duration, opts ...LaneOption) (*Lane, error) {
	if param == nil {
		return nil, errors.New("automation lane needs a parameter")
	}
	if period <= 0 {
		return nil, errors.New("automation period must be positive")
	}
	a := &Lane{
		param:  param,
		period: period,
		steps:  DefaultLaneSteps,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run writes until ctx is done. It returns nil on cancellation.
func (a *Lane) Run(ctx context.Context) error {
	interval := a.period / time.Duration(a.steps)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	spec := a.param.Spec()
	a.logger.Info("automation lane started", "param", spec.ID, "period", a.period)
	defer a.logger.Info("automation lane stopped", "param", spec.ID, "writes", a.writes.Load(), "refused", a.refused.Load())

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		v, err := spec.FromNormalized(triangle(i, a.steps))
		if err != nil {
			return err
		}
		err = a.param.Automate(v)
		switch {
		case err == nil:
			a.writes.Add(1)
		case errors.Is(err, params.ErrGestureActive):
			a.refused.Add(1)
			a.logger.Debug("automation refused", "param", spec.ID)
		default:
			return err
		}
	}
}

// Stats returns how many writes were accepted and refused.
func (a *Lane) Stats() (writes, refused int64) {
	return a.writes.Load(), a.refused.Load()
}

// triangle maps step i of an n-step period onto [0, 1] and back.
func triangle(i, n int) float64 {
	pos := float64(i%n) / float64(n)
	return 1 - math.Abs(2*pos-1)
}
