package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/config"
	"github.com/biomech/coretex/internal/entity"
	"github.com/biomech/coretex/internal/logging"
	"github.com/biomech/coretex/internal/model"
	"github.com/biomech/coretex/internal/storage"
)

// session bundles what the platform commands need: the configuration,
// the storage tree, a logger writing to the daily log and an API client.
type session struct {
	cfgPath string
	cfg     *config.Config
	storage *storage.Storage
	logger  *zap.Logger
	client  *api.Client
}

// openSession loads the configuration and prepares storage and logging.
// The API client is created by connect.
func openSession() (*session, error) {
	cfgPath, err := config.Path()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to locate configuration", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	VerboseLog("Loaded configuration from %s", cfgPath)

	st, err := storage.New(cfg.StoragePath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "failed to prepare storage", err)
	}

	severity := logging.SeverityInfo
	if verbose {
		severity = logging.SeverityDebug
	}
	logger, err := logging.New(severity, st.DailyLogPath(time.Now()))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to open log file", err)
	}

	return &session{cfgPath: cfgPath, cfg: cfg, storage: st, logger: logger}, nil
}

// Close flushes the logger.
func (s *session) Close() {
	_ = s.logger.Sync()
}

// connect returns an API client authenticated as the configured user.
// Stored tokens are reused; refreshed tokens are written back to the
// configuration file.
func (s *session) connect(ctx context.Context) (*api.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if !s.cfg.IsUserConfigured() {
		return nil, model.NewCLIError(model.ExitConfigError, "user is not configured, run \"coretex config user\" first")
	}

	client := api.New(s.cfg.APIURL(),
		api.WithLogger(s.logger),
		api.WithTokens(s.cfg.Token, s.cfg.RefreshToken),
	)
	client.OnTokenRefresh = s.saveTokens

	if s.cfg.Token == "" {
		if err := login(ctx, client, s.cfg.Username, s.cfg.Password); err != nil {
			return nil, err
		}
	}
	s.client = client
	return client, nil
}

// saveTokens persists tokens without touching any other value in the file.
func (s *session) saveTokens(token, refreshToken string) {
	s.cfg.Token, s.cfg.RefreshToken = token, refreshToken

	stored, err := config.Read(s.cfgPath)
	if err != nil {
		s.logger.Warn("failed to persist API tokens", zap.Error(err))
		return
	}
	stored.Token, stored.RefreshToken = token, refreshToken
	if err := config.Save(s.cfgPath, stored); err != nil {
		s.logger.Warn("failed to persist API tokens", zap.Error(err))
	}
}

// login authenticates with basic-auth credentials.
func login(ctx context.Context, client *api.Client, username, password string) error {
	resp, err := client.Authenticate(ctx, username, password)
	if err != nil {
		return model.WrapCLIError(model.ExitNetworkError, "failed to reach the Coretex server", err)
	}
	if resp.HasFailed() {
		return model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to authenticate user %q", username),
			api.NewRequestError(resp, "login rejected"))
	}
	return nil
}

// env returns the entity environment of an authenticated session.
func (s *session) env(ctx context.Context) (*entity.Env, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	return &entity.Env{Client: client, Storage: s.storage, Logger: s.logger}, nil
}
