package project

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/api/apitest"
	"github.com/biomech/coretex/internal/entity"
	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
	"github.com/biomech/coretex/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type recordingCallback struct {
	events []string
	err    error
}

func (r *recordingCallback) OnStart(context.Context, *entity.Experiment) {
	r.events = append(r.events, "start")
}

func (r *recordingCallback) OnSuccess(context.Context, *entity.Experiment) {
	r.events = append(r.events, "success")
}

func (r *recordingCallback) OnNetworkConnectionLost(context.Context, *entity.Experiment) {
	r.events = append(r.events, "network")
}

func (r *recordingCallback) OnInterrupt(context.Context, *entity.Experiment) {
	r.events = append(r.events, "interrupt")
}

func (r *recordingCallback) OnException(_ context.Context, _ *entity.Experiment, err error) {
	r.events = append(r.events, "exception")
	r.err = err
}

func (r *recordingCallback) OnCleanUp(context.Context, *entity.Experiment) {
	r.events = append(r.events, "cleanup")
}

type fixture struct {
	srv        *apitest.Server
	env        *entity.Env
	severities []logging.Severity
	paths      []string
}

func newFixture(t *testing.T, verbose bool) *fixture {
	t.Helper()

	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "model-queue/7", func(w http.ResponseWriter, r *http.Request) {
		apitest.JSON(w, http.StatusOK, map[string]any{
			"id":     7,
			"name":   "run",
			"status": 2,
			"meta": map[string]any{"parameters": []any{
				map[string]any{"name": "verbose", "value": verbose},
			}},
		})
	})
	srv.Handle(http.MethodPost, "model-queue/job-status-update", apitest.Status(http.StatusOK))
	srv.Handle(http.MethodPost, "model-queue/metrics-meta", apitest.Status(http.StatusOK))

	st, err := storage.New(t.TempDir())
	require.NoError(t, err)

	return &fixture{
		srv: srv,
		env: &entity.Env{Client: srv.Client(), Storage: st, Logger: zaptest.NewLogger(t)},
	}
}

func (f *fixture) options(t *testing.T, cb Callback, metrics ...entity.Metric) Options {
	return Options{
		Metrics:  metrics,
		Callback: cb,
		NewLogger: func(severity logging.Severity, path string) (*zap.Logger, error) {
			f.severities = append(f.severities, severity)
			f.paths = append(f.paths, path)
			return zaptest.NewLogger(t), nil
		},
	}
}

func (f *fixture) statuses(t *testing.T) []string {
	t.Helper()

	var out []string
	for _, r := range f.srv.Requests() {
		if r.Endpoint != "model-queue/job-status-update" {
			continue
		}
		var body struct {
			Status  int    `json:"status"`
			Message string `json:"status_message"`
		}
		require.NoError(t, json.Unmarshal(r.Body, &body))
		out = append(out, entity.ExperimentStatus(body.Status).String()+": "+body.Message)
	}
	return out
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, false)
	cb := &recordingCallback{}

	var got *entity.Experiment
	err := Run(context.Background(), f.env, 7, func(ctx context.Context, e *entity.Experiment, _ *zap.Logger) error {
		got = e
		return nil
	}, f.options(t, cb, entity.NewMetric("loss", "epoch", entity.MetricTypeInt, "loss", entity.MetricTypeFloat, nil, nil)))

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.StatusInProgress, got.Status)
	assert.Equal(t, []string{"start", "success", "cleanup"}, cb.events)
	assert.Equal(t, []string{"inProgress: " + ExecutingMessage}, f.statuses(t))
	assert.Equal(t, 1, f.srv.Count(http.MethodPost, "model-queue/metrics-meta"))

	assert.Equal(t, []logging.Severity{logging.SeverityInfo}, f.severities)
	assert.Equal(t, []string{filepath.Join(f.env.Storage.Root(), "logs", "7.log")}, f.paths)
}

func TestRunVerbose(t *testing.T) {
	f := newFixture(t, true)

	err := Run(context.Background(), f.env, 7, func(context.Context, *entity.Experiment, *zap.Logger) error {
		return nil
	}, f.options(t, &recordingCallback{}))

	require.NoError(t, err)
	assert.Equal(t, []logging.Severity{logging.SeverityDebug}, f.severities)
}

func TestRunOutcomes(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		fn       Func
		cancel   bool
		wantCode model.ExitCode
		wantErr  error
		events   []string
	}{
		{
			name:     "exception",
			fn:       func(context.Context, *entity.Experiment, *zap.Logger) error { return boom },
			wantCode: model.ExitGeneralError,
			wantErr:  boom,
			events:   []string{"start", "exception", "cleanup"},
		},
		{
			name:     "panic",
			fn:       func(context.Context, *entity.Experiment, *zap.Logger) error { panic("bad state") },
			wantCode: model.ExitGeneralError,
			events:   []string{"start", "exception", "cleanup"},
		},
		{
			name: "network lost",
			fn: func(context.Context, *entity.Experiment, *zap.Logger) error {
				return errors.Join(errors.New("upload"), api.ErrRequestFailed)
			},
			wantCode: model.ExitNetworkError,
			wantErr:  api.ErrRequestFailed,
			events:   []string{"start", "network", "cleanup"},
		},
		{
			name: "interrupt",
			fn: func(ctx context.Context, _ *entity.Experiment, _ *zap.Logger) error {
				return ctx.Err()
			},
			cancel:  true,
			wantErr: context.Canceled,
			events:  []string{"start", "interrupt", "cleanup"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			cb := &recordingCallback{}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			fn := tt.fn
			if tt.cancel {
				fn = func(ctx context.Context, e *entity.Experiment, l *zap.Logger) error {
					cancel()
					return tt.fn(ctx, e, l)
				}
			}

			err := Run(ctx, f.env, 7, fn, f.options(t, cb))
			require.Error(t, err)
			assert.Equal(t, tt.events, cb.events)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantCode != 0 {
				var cliErr *model.CLIError
				require.ErrorAs(t, err, &cliErr)
				assert.Equal(t, tt.wantCode, cliErr.Code)
			}
		})
	}
}

func TestRunFetchFailure(t *testing.T) {
	f := newFixture(t, false)
	cb := &recordingCallback{}

	err := Run(context.Background(), f.env, 8, func(context.Context, *entity.Experiment, *zap.Logger) error {
		t.Fatal("project function must not run")
		return nil
	}, f.options(t, cb))

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.Empty(t, cb.events)
}

func TestStatusCallback(t *testing.T) {
	f := newFixture(t, false)

	err := Run(context.Background(), f.env, 7, func(context.Context, *entity.Experiment, *zap.Logger) error {
		return errors.New("missing input file")
	}, f.options(t, nil))
	require.Error(t, err)

	assert.Equal(t, []string{
		"inProgress: " + ExecutingMessage,
		"completedWithError: Experiment failed: missing input file",
	}, f.statuses(t))

	f = newFixture(t, false)
	require.NoError(t, Run(context.Background(), f.env, 7, func(context.Context, *entity.Experiment, *zap.Logger) error {
		return nil
	}, f.options(t, nil)))

	assert.Equal(t, []string{
		"inProgress: " + ExecutingMessage,
		"completedWithSuccess: Experiment completed successfully.",
	}, f.statuses(t))
}
