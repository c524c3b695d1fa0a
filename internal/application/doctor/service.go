package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// selfCheckCommand must always be classified HIGH by a working rule set.
const selfCheckCommand = "rm -rf /"

// Service runs environment diagnostics. Every dependency except
// ConfigProvider is optional; missing ones are reported as warnings.
type Service struct {
	ConfigProvider   ports.ConfigProvider
	Examiner         ports.RiskExaminer
	Knowledge        ports.KnowledgeRepository
	AuditLog         ports.AuditLog
	ContextCollector ports.ContextCollector
	LookupEnv        func(string) string
	LookPath         func(string) (string, error)
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("format version %s", cfg.ConfigFormatVersion)))

	checks = append(checks, s.rulesCheck())
	checks = append(checks, s.knowledgeCheck(ctx))
	checks = append(checks, s.auditCheck(ctx))

	if s.ContextCollector != nil {
		if snapshot, err := s.ContextCollector.Collect(ctx, cfg); err == nil {
			checks = append(checks, ok("Context collector", fmt.Sprintf("detected tools: %d", len(snapshot.AvailableTools))))
		} else {
			checks = append(checks, warn("Context collector", err.Error()))
		}
	}

	checks = append(checks, s.interpreterCheck(cfg))
	checks = append(checks, s.searchCheck(cfg))
	checks = append(checks, s.shellCheck(cfg))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) rulesCheck() domain.HealthCheck {
	if s.Examiner == nil {
		return warn("Risk rules", "examiner not initialized")
	}
	if got := s.Examiner.Assess(selfCheckCommand); got.Tier != domain.RiskHigh {
		return fail("Risk rules", fmt.Sprintf("%q classified %s, want HIGH", selfCheckCommand, got.Tier))
	}
	return ok("Risk rules", "rules loaded")
}

func (s *Service) knowledgeCheck(ctx context.Context) domain.HealthCheck {
	if s.Knowledge == nil {
		return warn("Knowledge store", "not opened")
	}
	if _, err := s.Knowledge.List(ctx, 1); err != nil {
		return fail("Knowledge store", fmt.Sprintf("%s: %v", s.Knowledge.Path(), err))
	}
	return ok("Knowledge store", s.Knowledge.Path())
}

func (s *Service) auditCheck(ctx context.Context) domain.HealthCheck {
	if s.AuditLog == nil {
		return warn("Audit log", "not opened")
	}
	if _, err := s.AuditLog.Records(ctx, "", 1); err != nil {
		return fail("Audit log", fmt.Sprintf("%s: %v", s.AuditLog.Path(), err))
	}
	return ok("Audit log", s.AuditLog.Path())
}

func (s *Service) interpreterCheck(cfg domain.Config) domain.HealthCheck {
	if cfg.Preferences.Offline {
		return warn("Interpreter", "offline mode, using keyword rules")
	}
	model, err := cfg.GetDefaultModel()
	if err != nil {
		return fail("Interpreter", err.Error())
	}
	if !model.HasCredentials(s.env) {
		return warn("Interpreter", fmt.Sprintf("%s missing for %s, falling back to keyword rules", model.AuthEnvVar, model.Name))
	}
	return ok("Interpreter", fmt.Sprintf("%s (%s)", model.Name, model.ModelID))
}

func (s *Service) searchCheck(cfg domain.Config) domain.HealthCheck {
	switch {
	case !cfg.Search.Enabled:
		return warn("Context search", "disabled")
	case cfg.Search.AuthEnvVar != "" && s.env(cfg.Search.AuthEnvVar) == "":
		return warn("Context search", cfg.Search.AuthEnvVar+" missing, planning without snippets")
	default:
		return ok("Context search", cfg.Search.Provider)
	}
}

func (s *Service) shellCheck(cfg domain.Config) domain.HealthCheck {
	shell := cfg.Execution.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(shell)
	if err != nil {
		return fail("Shell", fmt.Sprintf("%s not found: %v", shell, err))
	}
	return ok("Shell", path)
}

func (s *Service) env(key string) string {
	if s.LookupEnv != nil {
		return s.LookupEnv(key)
	}
	return os.Getenv(key)
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
