package project

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/entity"
)

// Callback receives the lifecycle events of a run. Exactly one of
// OnSuccess, OnNetworkConnectionLost, OnInterrupt and OnException is
// called after OnStart; OnCleanUp is always called last.
type Callback interface {
	OnStart(ctx context.Context, e *entity.Experiment)
	OnSuccess(ctx context.Context, e *entity.Experiment)
	OnNetworkConnectionLost(ctx context.Context, e *entity.Experiment)
	OnInterrupt(ctx context.Context, e *entity.Experiment)
	OnException(ctx context.Context, e *entity.Experiment, err error)
	OnCleanUp(ctx context.Context, e *entity.Experiment)
}

// StatusCallback reports the outcome of a run as the experiment status.
type StatusCallback struct {
	Logger *zap.Logger
}

var _ Callback = (*StatusCallback)(nil)

func (c *StatusCallback) OnStart(context.Context, *entity.Experiment) {}

func (c *StatusCallback) OnSuccess(ctx context.Context, e *entity.Experiment) {
	c.logger().Info("experiment finished successfully")
	c.update(ctx, e, entity.StatusCompletedWithSuccess, "Experiment completed successfully.")
}

func (c *StatusCallback) OnNetworkConnectionLost(ctx context.Context, e *entity.Experiment) {
	c.logger().Error("connection to the Coretex API was lost")
	// The API is unreachable, so the status only changes locally.
	_ = e.UpdateStatus(ctx, entity.StatusCompletedWithError, "Network connection lost.", false)
}

func (c *StatusCallback) OnInterrupt(ctx context.Context, e *entity.Experiment) {
	c.logger().Info("experiment interrupted")
	c.update(ctx, e, entity.StatusStopped, "Experiment was interrupted.")
}

func (c *StatusCallback) OnException(ctx context.Context, e *entity.Experiment, err error) {
	c.logger().Error("experiment failed", zap.Error(err))
	c.update(ctx, e, entity.StatusCompletedWithError, fmt.Sprintf("Experiment failed: %v", err))
}

func (c *StatusCallback) OnCleanUp(context.Context, *entity.Experiment) {
	_ = c.logger().Sync()
}

func (c *StatusCallback) update(ctx context.Context, e *entity.Experiment, status entity.ExperimentStatus, message string) {
	// Final statuses are reported even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := e.UpdateStatus(ctx, status, message, true); err != nil {
		c.logger().Warn("failed to update experiment status",
			zap.Stringer("status", status), zap.Error(err))
	}
}

func (c *StatusCallback) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
