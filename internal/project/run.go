package project

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/entity"
	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
)

// ExecutingMessage is the status message set when the project function
// starts.
const ExecutingMessage = "Executing project."

// VerboseParameter switches the experiment log to debug level when true.
const VerboseParameter = "verbose"

// Func is the body of a project.
type Func func(ctx context.Context, e *entity.Experiment, logger *zap.Logger) error

// Options configures Run. The zero value is usable.
type Options struct {
	// Metrics are created before the project function is called.
	Metrics []entity.Metric

	// Callback defaults to a StatusCallback logging to the experiment log.
	Callback Callback

	// NewLogger builds the experiment logger. Defaults to logging.New.
	NewLogger func(severity logging.Severity, path string) (*zap.Logger, error)
}

// Run executes fn as experiment experimentID.
//
// A failure of fn is reported through OnException and returned as a
// CLIError with ExitGeneralError. Losing the API connection is reported
// through OnNetworkConnectionLost and returned with ExitNetworkError.
// Context cancellation is reported through OnInterrupt and returns
// ctx.Err().
func Run(ctx context.Context, env *entity.Env, experimentID int, fn Func, opts Options) error {
	e, err := entity.FetchExperiment(ctx, env, experimentID)
	if err != nil {
		return classify(fmt.Sprintf("failed to fetch experiment %d", experimentID), err)
	}

	logger, err := experimentLogger(env, e, opts)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to open experiment log", err)
	}
	logger = logger.With(zap.Int("experiment", e.ID))

	cb := opts.Callback
	if cb == nil {
		cb = &StatusCallback{Logger: logger}
	}
	defer cb.OnCleanUp(ctx, e)

	err = execute(ctx, e, fn, opts.Metrics, cb, logger)
	switch {
	case err == nil:
		cb.OnSuccess(ctx, e)
		return nil
	case errors.Is(err, api.ErrRequestFailed):
		cb.OnNetworkConnectionLost(ctx, e)
		return model.WrapCLIError(model.ExitNetworkError, "connection to the Coretex API was lost", err)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		cb.OnInterrupt(ctx, e)
		return err
	default:
		cb.OnException(ctx, e, err)
		return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("experiment %d failed", e.ID), err)
	}
}

func execute(ctx context.Context, e *entity.Experiment, fn Func, metrics []entity.Metric, cb Callback, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("project panicked: %v", r)
		}
	}()

	if err := e.UpdateStatus(ctx, entity.StatusInProgress, ExecutingMessage, true); err != nil {
		return err
	}

	if len(metrics) > 0 {
		if err := e.CreateMetrics(ctx, metrics); err != nil {
			return err
		}
		logger.Info("metrics successfully created", zap.Int("count", len(metrics)))
	}

	cb.OnStart(ctx, e)

	logger.Info("experiment execution started")
	return fn(ctx, e, logger)
}

func experimentLogger(env *entity.Env, e *entity.Experiment, opts Options) (*zap.Logger, error) {
	severity := logging.SeverityInfo
	if e.BoolParameter(VerboseParameter) {
		severity = logging.SeverityDebug
	}

	newLogger := opts.NewLogger
	if newLogger == nil {
		newLogger = logging.New
	}
	return newLogger(severity, env.Storage.LogPath(strconv.Itoa(e.ID)))
}

func classify(message string, err error) error {
	if errors.Is(err, api.ErrRequestFailed) {
		return model.WrapCLIError(model.ExitNetworkError, message, err)
	}
	return model.WrapCLIError(model.ExitGeneralError, message, err)
}
