package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	auditapp "github.com/doeshing/genosma/internal/application/audit"
	"github.com/doeshing/genosma/internal/application/doctor"
	"github.com/doeshing/genosma/internal/application/orchestrator"
	"github.com/doeshing/genosma/internal/application/planner"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/infrastructure/ai"
	"github.com/doeshing/genosma/internal/infrastructure/audit"
	"github.com/doeshing/genosma/internal/infrastructure/cache"
	"github.com/doeshing/genosma/internal/infrastructure/config"
	contextcollector "github.com/doeshing/genosma/internal/infrastructure/context"
	"github.com/doeshing/genosma/internal/infrastructure/executor"
	"github.com/doeshing/genosma/internal/infrastructure/knowledge"
	"github.com/doeshing/genosma/internal/infrastructure/search"
	"github.com/doeshing/genosma/internal/infrastructure/security"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
	"github.com/doeshing/genosma/internal/pkg/logger"
	"github.com/doeshing/genosma/internal/pkg/tracing"
	"github.com/doeshing/genosma/internal/ports"
)

// Options controls how the container is built.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// Container wires up application services with infrastructure adapters.
// Config may be adjusted by CLI flags before Orchestrator is called.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         *logger.ZapLogger
	Collector      ports.ContextCollector
	Interpreter    ports.Interpreter
	Search         ports.ContextSearch
	Knowledge      ports.KnowledgeRepository
	AuditLog       *audit.JSONLLog
	CacheStore     *cache.FileCache
	DoctorService  *doctor.Service
	Tracing        *tracing.Provider
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{
		Verbose:  opts.Verbose,
		FilePath: filesystem.DataPath("logs", "genosma.jsonl"),
	})
	if err != nil {
		log = logger.NewNop()
	}

	traces, err := tracing.New(tracing.Options{
		Enabled: cfg.Tracing.Enabled || opts.Verbose,
		Path:    cfg.Tracing.Path,
		Syncer:  true,
	})
	if err != nil {
		log.Warn("tracing unavailable", map[string]interface{}{"error": err.Error()})
	}
	traces.Install()

	cacheStore := cache.NewFileCache("", cfg.GetCacheTTL(), cfg.GetCacheMaxEntries())
	interpreter, err := ai.NewFactory().ForConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Enabled {
		interpreter = ai.NewCachedInterpreter(interpreter, cacheStore, log.Named("cache"))
	}

	repo, err := knowledge.Open(cfg, log.Named("knowledge"))
	if err != nil {
		return nil, err
	}

	collector := contextcollector.NewBasicCollector()
	auditLog := audit.NewJSONLLog(audit.ResolvePath(cfg))

	c := &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Collector:      collector,
		Interpreter:    interpreter,
		Search:         search.ForConfig(cfg, os.Getenv),
		Knowledge:      repo,
		AuditLog:       auditLog,
		CacheStore:     cacheStore,
		Tracing:        traces,
	}

	examiner, err := c.Examiner()
	if err != nil {
		log.Warn("risk rules unavailable", map[string]interface{}{"error": err.Error()})
	}
	c.DoctorService = &doctor.Service{
		ConfigProvider:   cfgLoader,
		Knowledge:        repo,
		AuditLog:         auditLog,
		ContextCollector: collector,
	}
	if examiner != nil {
		c.DoctorService.Examiner = examiner
	}
	return c, nil
}

// WorkDir is the directory steps run in and the one the examiner treats as
// in scope: risk.work_dir expanded and made absolute, else the process cwd.
func (c *Container) WorkDir() string {
	dir := c.Config.Risk.WorkDir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}
	dir = filesystem.ExpandPath(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Clean(dir)
}

// Examiner builds a risk examiner for the current Config.
func (c *Container) Examiner() (*security.Examiner, error) {
	return security.NewExaminer(security.ExaminerOptions{
		RulesFile: c.Config.Risk.RulesFile,
		Policy:    c.Config.GetRiskPolicy(),
		WorkDir:   c.WorkDir(),
	})
}

// Executor builds the shell executor for the current Config.
func (c *Container) Executor() *executor.LocalExecutor {
	cfg := c.Config
	return executor.NewLocalExecutor(executor.Options{
		Shell:          cfg.Execution.Shell,
		StepTimeout:    cfg.GetStepTimeout(),
		MaxOutputBytes: cfg.GetMaxOutputBytes(),
		WorkDir:        c.WorkDir(),
		Logger:         c.Logger.Named("executor"),
	})
}

// Orchestrator assembles an orchestrator for the current Config. The gate
// and clarifier come from the caller since they depend on the terminal.
// Audit records go to the durable log and to every extra sink.
func (c *Container) Orchestrator(gate ports.ConfirmationGate, clarifier ports.Clarifier, extra ...ports.AuditSink) (*orchestrator.Orchestrator, error) {
	cfg := c.Config
	examiner, err := c.Examiner()
	if err != nil {
		return nil, err
	}
	var sink ports.AuditSink = c.AuditLog
	if len(extra) > 0 {
		sink = append(auditapp.Tee{c.AuditLog}, extra...)
	}
	return orchestrator.New(cfg, orchestrator.Dependencies{
		Collector:   c.Collector,
		Interpreter: c.Interpreter,
		Clarifier:   clarifier,
		Planner: &planner.Service{
			Config:      cfg,
			Knowledge:   c.Knowledge,
			Interpreter: c.Interpreter,
			Search:      c.Search,
			Logger:      c.Logger.Named("planner"),
		},
		Examiner:  examiner,
		Executor:  c.Executor(),
		Gate:      gate,
		Knowledge: c.Knowledge,
		AuditSink: sink,
		Logger:    c.Logger.Named("orchestrator"),
		Tracer:    c.Tracing.TracerProvider(),
	})
}

// Close flushes spans, releases the knowledge store and flushes the logger.
func (c *Container) Close() error {
	var errs []error
	errs = append(errs, c.Tracing.Shutdown(context.Background()))
	if c.Knowledge != nil {
		errs = append(errs, c.Knowledge.Close())
	}
	if c.Logger != nil {
		errs = append(errs, c.Logger.Sync())
	}
	return errors.Join(errs...)
}
