// Package entity models the Coretex.ai objects the SDK works with
// (experiments, metrics, datasets, samples and image annotations) and the
// API calls that load and modify them.
//
// Entities are plain structs decoded from API JSON. Those that perform
// requests keep a reference to the Env they were loaded with, so a
// fetched Dataset can download its samples into the same local storage.
package entity

import (
	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/storage"
)

// Env bundles what entities need to talk to the platform.
type Env struct {
	Client  *api.Client
	Storage *storage.Storage
	Logger  *zap.Logger
}

func (e *Env) log() *zap.Logger {
	if e == nil {
		return zap.NewNop()
	}
	return logging.OrNop(e.Logger)
}
