package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/model"
	"github.com/seqflow-io/seqflow/internal/runstore"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *capability.Registry
	workflow *model.Workflow
	store    runstore.Store
	config   *Config
	runID    string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...capability.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	wf, err := model.LoadWorkflow(ctx, cfg.WorkflowPath)
	if err != nil {
		// A failure to load the workflow is a fatal startup error.
		panic(fmt.Errorf("failed to load workflow: %w", err))
	}
	logger.Debug("Workflow loaded.", "path", cfg.WorkflowPath, "tasks", len(wf.Tasks))

	reg := capability.NewRegistry()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All capability modules registered.", "count", len(modules), "capabilities", reg.Names())

	var store runstore.Store
	if cfg.StateDir != "" {
		store, err = runstore.OpenBadgerStore(cfg.StateDir)
		if err != nil {
			panic(fmt.Errorf("failed to open run store at %s: %w", cfg.StateDir, err))
		}
		logger.Debug("Persistent run store opened.", "dir", cfg.StateDir)
	} else {
		store = runstore.NewMemoryStore()
		logger.Debug("Using in-memory run store; resume is disabled.")
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		workflow: wf,
		store:    store,
		config:   cfg,
		runID:    runID,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *capability.Registry {
	return a.registry
}

// RunID returns the identifier this app instance records run state under.
func (a *App) RunID() string {
	return a.runID
}

// Close releases the run store.
func (a *App) Close() error {
	return a.store.Close()
}
