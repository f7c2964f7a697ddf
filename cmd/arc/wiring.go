package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/recursive-core/arc/internal/config"
	"github.com/recursive-core/arc/internal/gateway"
	"github.com/recursive-core/arc/internal/kernel"
	"github.com/recursive-core/arc/internal/llm"
	"github.com/recursive-core/arc/internal/router"
	"github.com/recursive-core/arc/internal/state"
	"github.com/recursive-core/arc/internal/tools"
)

// runtime bundles the wired kernel stack for one command invocation.
type runtime struct {
	cfg     *config.Config
	db      *state.DB
	router  *router.Router
	gateway *gateway.Gateway
	kernel  *kernel.Kernel
	workDir string
}

// buildRuntime assembles the full stack: config, project database,
// capability registry, tool gateway, model client, and kernel.
// Offline mode swaps the Anthropic client for the scripted mock;
// llmRouting lets the model break routing ties patterns miss.
func buildRuntime(offline, llmRouting bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	workDir := cfg.Gateway.WorkDir
	if workDir == "" {
		workDir = cwd
	}

	db, err := state.OpenProject(cwd)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state database: %w", err)
	}

	capabilities, err := config.LoadCapabilities(filepath.Join(cwd, ".arc", "capabilities.yaml"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load capabilities: %w", err)
	}
	r := router.New()
	for _, capability := range capabilities {
		if err := r.Register(capability); err != nil {
			db.Close()
			return nil, fmt.Errorf("register capability: %w", err)
		}
	}

	g := gateway.New(gateway.Config{ToolTimeout: cfg.Gateway.ToolTimeout})
	if err := tools.Register(g, workDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	// No key and no Bedrock means nothing can reach a model; degrade
	// to the deterministic mock instead of failing at first use.
	if !offline && !cfg.Anthropic.UseBedrock {
		if _, err := config.GetAPIKey(cfg); err != nil {
			log.Printf("[arc] no API key configured, running offline with the mock model")
			offline = true
		}
	}

	var completer llm.Completer
	if offline {
		completer = llm.NewMock()
	} else {
		client, err := llm.NewClient(llm.ClientConfig{
			Model:         cfg.Anthropic.Model,
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create model client: %w", err)
		}
		completer = client
	}

	if llmRouting {
		if err := r.SetClassifier(llm.NewClassifier(completer)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set classifier: %w", err)
		}
	}
	r.Freeze()

	catalog := make(map[string]string)
	for _, id := range g.Tools() {
		if tool, ok := g.Lookup(id); ok {
			catalog[id] = tool.Description()
		}
	}

	k := kernel.New(kernel.Config{
		MaxCycles:     cfg.Kernel.MaxCycles,
		RetryCeiling:  cfg.Kernel.RetryCeiling,
		ContextWindow: cfg.Memory.ContextWindow,
		EventBuffer:   cfg.Kernel.EventBuffer,
	}, db, r, g)
	for _, capability := range capabilities {
		k.RegisterHandler(capability.Name, llm.NewHandler(capability.Name, completer, catalog))
	}
	k.SetSummarizer(llm.NewSummarizer(completer))

	return &runtime{
		cfg:     cfg,
		db:      db,
		router:  r,
		gateway: g,
		kernel:  k,
		workDir: workDir,
	}, nil
}

// Close releases the runtime's resources.
func (rt *runtime) Close() {
	rt.db.Close()
}

// openStatusDB opens the project database if present, falling back
// to the global one. Returns nil without error when neither exists.
func openStatusDB() (*state.DB, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
