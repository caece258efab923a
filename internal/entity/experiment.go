package entity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/api"
)

// Experiment endpoints.
const (
	ExperimentEndpoint      = "model-queue"
	statusUpdateEndpoint    = "model-queue/job-status-update"
	metricsMetaEndpoint     = "model-queue/metrics-meta"
	metricsEndpoint         = "model-queue/metrics"
	customStartEndpoint     = "model-queue/custom"
	projectDownloadEndpoint = "workspace/download"
	artifactUploadEndpoint  = "artifact/upload-file"
)

// minStatusMessageLength is exclusive: status messages must carry some
// information for the platform UI.
const minStatusMessageLength = 10

// statusUpdateMu serialises status updates of all experiments in the
// process so updates reach the server in the order they were made.
var statusUpdateMu sync.Mutex

// Experiment is a run of a project on a Coretex Node.
type Experiment struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Meta         map[string]any   `json:"meta"`
	Status       ExperimentStatus `json:"status"`
	SpaceID      int              `json:"project_id"`
	SpaceName    string           `json:"project_name"`
	SpaceTask    SpaceTask        `json:"project_task"`
	ProjectID    int              `json:"sub_project_id"`
	ProjectName  string           `json:"sub_project_name"`
	CreatedByID  string           `json:"created_by_id"`
	UseCachedEnv bool             `json:"use_cached_env"`

	Metrics []Metric `json:"-"`

	env               *Env
	parameters        map[string]any
	lastStatusMessage string
}

// FetchExperiment loads experiment id.
func FetchExperiment(ctx context.Context, env *Env, id int) (*Experiment, error) {
	e, err := api.FetchByID[Experiment](ctx, env.Client, ExperimentEndpoint, id, nil)
	if err != nil {
		return nil, err
	}
	if err := e.bind(env); err != nil {
		return nil, err
	}
	return e, nil
}

// bind attaches env and decodes the parameter list from meta.
func (e *Experiment) bind(env *Env) error {
	e.env = env
	e.parameters = map[string]any{}

	raw, ok := e.Meta["parameters"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("experiment %d: meta.parameters must be a list, got %T", e.ID, raw)
	}
	for _, item := range list {
		p, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("experiment %d: invalid parameter entry %v", e.ID, item)
		}
		name, ok := p["name"].(string)
		if !ok {
			return fmt.Errorf("experiment %d: parameter without name", e.ID)
		}
		e.parameters[name] = p["value"]
	}
	return nil
}

// Parameters returns the experiment parameters by name.
func (e *Experiment) Parameters() map[string]any {
	return e.parameters
}

// ParameterNames returns the parameter names in sorted order.
func (e *Experiment) ParameterNames() []string {
	names := make([]string, 0, len(e.parameters))
	for n := range e.parameters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BoolParameter returns the named parameter when it is a bool.
func (e *Experiment) BoolParameter(name string) bool {
	v, _ := e.parameters[name].(bool)
	return v
}

// LastStatusMessage returns the message of the last status update.
func (e *Experiment) LastStatusMessage() string {
	return e.lastStatusMessage
}

// ProjectPath is the folder the project snapshot is extracted into.
func (e *Experiment) ProjectPath() string {
	return e.env.Storage.TempPath(fmt.Sprint(e.ID))
}

// UpdateStatus sets the experiment status. An empty message uses the
// status default; messages must be longer than 10 characters. When notify
// is false only the local state changes.
func (e *Experiment) UpdateStatus(ctx context.Context, status ExperimentStatus, message string, notify bool) error {
	statusUpdateMu.Lock()
	defer statusUpdateMu.Unlock()

	if message == "" {
		message = status.DefaultMessage()
	}
	if len(message) <= minStatusMessageLength {
		return fmt.Errorf("status message %q is too short: must be longer than %d characters", message, minStatusMessageLength)
	}

	e.Status = status
	e.lastStatusMessage = message

	if !notify {
		return nil
	}

	resp, err := e.env.Client.Post(ctx, statusUpdateEndpoint, map[string]any{
		"id":             e.ID,
		"status":         int(status),
		"status_message": message,
	})
	if err != nil {
		return err
	}
	if resp.HasFailed() {
		e.env.log().Error("error while updating experiment status",
			zap.Int("experiment", e.ID), zap.Int("status", resp.StatusCode))
		return api.NewRequestError(resp, "failed to update experiment status")
	}
	return nil
}

// CreateMetrics registers metrics for the experiment.
func (e *Experiment) CreateMetrics(ctx context.Context, metrics []Metric) error {
	resp, err := e.env.Client.Post(ctx, metricsMetaEndpoint, map[string]any{
		"experiment_id": e.ID,
		"metrics":       metrics,
	})
	if err != nil {
		return err
	}
	if err := api.Check(resp, "failed to create metrics"); err != nil {
		return err
	}
	e.Metrics = append(e.Metrics, metrics...)
	return nil
}

// SubmitMetrics appends one value per metric name, stamped with the
// current time. Names are sent in sorted order.
func (e *Experiment) SubmitMetrics(ctx context.Context, values map[string]MetricValue) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	now := unixSeconds(time.Now())
	points := make([]metricPoint, 0, len(values))
	for _, n := range names {
		points = append(points, metricPoint{Timestamp: now, Metric: n, X: values[n].X, Y: values[n].Y})
	}

	resp, err := e.env.Client.Post(ctx, metricsEndpoint, map[string]any{
		"experiment_id": e.ID,
		"metrics":       points,
	})
	if err != nil {
		return err
	}
	return api.Check(resp, "failed to submit metrics")
}

// DownloadProject downloads the project snapshot of the experiment and
// extracts it into ProjectPath. The archive is removed afterwards.
func (e *Experiment) DownloadProject(ctx context.Context) (string, error) {
	dir := e.ProjectPath()
	zipPath := dir + ".zip"

	resp, err := e.env.Client.Download(ctx, projectDownloadEndpoint, zipPath, map[string]any{"model_queue_id": e.ID})
	if err != nil {
		return "", err
	}
	if resp.HasFailed() {
		e.env.log().Info("project download has failed", zap.Int("experiment", e.ID))
		return "", api.NewRequestError(resp, "failed to download project")
	}
	defer os.Remove(zipPath)

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear project folder: %w", err)
	}
	if err := Extract(zipPath, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Artifact is a file stored with an experiment.
type Artifact struct {
	ExperimentID   int    `json:"model_queue_id"`
	RemoteFilePath string `json:"path"`
	Size           int64  `json:"size"`
	MimeType       string `json:"mime_type"`
	Timestamp      int64  `json:"timestamp"`
}

// ErrNotArchive is returned for artifacts that must be zip archives.
var ErrNotArchive = errors.New("not an archive")

// CreateArtifact uploads localPath as remotePath. An empty mimeType is
// guessed from the extension.
func (e *Experiment) CreateArtifact(ctx context.Context, localPath, remotePath, mimeType string) (*Artifact, error) {
	if mimeType == "" {
		var err error
		if mimeType, err = api.GuessMimeType(localPath); err != nil {
			return nil, err
		}
	}

	resp, err := e.env.Client.Upload(ctx, artifactUploadEndpoint,
		[]api.File{api.FileFromPath("file", localPath, mimeType)},
		map[string]string{
			"model_queue_id": fmt.Sprint(e.ID),
			"path":           remotePath,
		})
	if err != nil {
		return nil, err
	}
	if err := api.Check(resp, fmt.Sprintf("failed to upload %s to %s", localPath, remotePath)); err != nil {
		return nil, err
	}

	var a Artifact
	if err := resp.Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateArchiveArtifact uploads a zip archive (for example a QIIME .qza or
// .qzv file) under folder/<name>.
func (e *Experiment) CreateArchiveArtifact(ctx context.Context, folder, path string) (*Artifact, error) {
	if !IsZip(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotArchive)
	}
	return e.CreateArtifact(ctx, path, folder+"/"+filepath.Base(path), "application/zip")
}

// StartCustomExperiment queues a run of project on node with the given
// parameter definitions.
func StartCustomExperiment(ctx context.Context, env *Env, projectID int, nodeID, name, description string, parameters []map[string]any) (*Experiment, error) {
	if parameters == nil {
		parameters = []map[string]any{}
	}

	resp, err := env.Client.Post(ctx, customStartEndpoint, map[string]any{
		"sub_project_id": projectID,
		"service_id":     nodeID,
		"name":           name,
		"description":    description,
		"parameters":     parameters,
	})
	if err != nil {
		return nil, err
	}
	if err := api.Check(resp, "failed to create experiment"); err != nil {
		return nil, err
	}

	var created []*Experiment
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("failed to create experiment: empty response")
	}
	if err := created[0].bind(env); err != nil {
		return nil, err
	}
	return created[0], nil
}
