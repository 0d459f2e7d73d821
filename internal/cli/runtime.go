package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harun/recall/internal/config"
	"github.com/harun/recall/internal/logger"
	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/composer"
	"github.com/harun/recall/pkg/memory"
	"github.com/harun/recall/pkg/transport"
)

// runtime bundles everything a command needs after bootstrap.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	service *memory.Service
}

func (r *runtime) close() {
	if r.log != nil {
		r.log.Close()
	}
}

// buildRuntime loads configuration, sets up logging and tracing, and
// constructs the memory service around the configured transport.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log, err := newLoggerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if err := tracing.Init(tracing.Config{
		ServiceName:    "recall",
		ServiceVersion: version,
		Transport:      cfg.Transport,
	}); err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}

	client := buildClient(cfg, log)

	svc, err := memory.NewService(memory.Config{
		Client:       client,
		Logger:       log.GetZerolog(),
		GroupPrefix:  cfg.Memory.GroupPrefix,
		UserTag:      cfg.Memory.UserTag,
		ProjectTag:   cfg.Memory.ProjectTag,
		SearchLimit:  cfg.Limits.Search,
		ProfileLimit: cfg.Limits.Profile,
		EntityTypes:  cfg.Memory.EntityTypes,
		Composer: composer.New(composer.Config{
			MaxProfileItems:       cfg.Limits.Profile,
			InjectProfile:         cfg.Inject.Profile,
			InjectProjectMemories: cfg.Inject.ProjectMemories,
			InjectUserMemories:    cfg.Inject.UserMemories,
		}),
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, log: log, service: svc}, nil
}

// newLoggerFromConfig builds the logger, honoring the --log-level
// override.
func newLoggerFromConfig(cfg *config.Config) (*logger.Logger, error) {
	logCfg := logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log, nil
}

// buildClient constructs the one transport client the process uses.
func buildClient(cfg *config.Config, log *logger.Logger) transport.Client {
	if cfg.Transport == config.TransportREST {
		return transport.NewRESTClient(transport.RESTConfig{
			BaseURL:     cfg.REST.BaseURL,
			Logger:      log.GetZerolog(),
			CallTimeout: time.Duration(cfg.REST.CallTimeoutSeconds) * time.Second,
		})
	}
	return transport.NewMCPClient(transport.MCPConfig{
		BaseURL:     cfg.MCP.BaseURL,
		Logger:      log.GetZerolog(),
		CallTimeout: time.Duration(cfg.MCP.CallTimeoutSeconds) * time.Second,
	})
}

// printJSON writes one indented JSON document to the writer.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
