package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/doeshing/genosma/internal/domain"
)

type stubConfigProvider struct {
	cfg domain.Config
	err error
}

func (s stubConfigProvider) Load(context.Context) (domain.Config, error) {
	return s.cfg, s.err
}

type stubExaminer struct{ tier domain.RiskTier }

func (s stubExaminer) Examine(_ context.Context, plan domain.Plan) (domain.Plan, error) {
	return plan, nil
}

func (s stubExaminer) Assess(string) domain.RiskAssessment {
	return domain.RiskAssessment{Tier: s.tier}
}

func statusOf(report domain.HealthReport, name string) domain.HealthStatus {
	for _, check := range report.Checks {
		if check.Name == name {
			return check.Status
		}
	}
	return ""
}

func TestDoctorRun(t *testing.T) {
	cfg := domain.Config{
		Preferences: domain.Preferences{DefaultModel: "m"},
		Models:      []domain.ModelDefinition{{Name: "m", AuthEnvVar: "M_KEY", ModelID: "x"}},
		Search:      domain.SearchSettings{Enabled: true, Provider: "tavily", AuthEnvVar: "S_KEY"},
	}
	env := map[string]string{"M_KEY": "secret"}
	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: cfg},
		Examiner:       stubExaminer{tier: domain.RiskHigh},
		LookupEnv:      func(k string) string { return env[k] },
		LookPath:       func(p string) (string, error) { return p, nil },
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := map[string]domain.HealthStatus{
		"Config file":     domain.HealthOK,
		"Risk rules":      domain.HealthOK,
		"Knowledge store": domain.HealthWarn,
		"Interpreter":     domain.HealthOK,
		"Context search":  domain.HealthWarn,
		"Shell":           domain.HealthOK,
	}
	for name, status := range want {
		if got := statusOf(report, name); got != status {
			t.Errorf("%s = %q, want %q", name, got, status)
		}
	}
	if len(report.Failed()) != 0 {
		t.Errorf("unexpected failures: %+v", report.Failed())
	}
}

func TestDoctorFlagsBrokenRulesAndShell(t *testing.T) {
	svc := &Service{
		ConfigProvider: stubConfigProvider{cfg: domain.Config{Preferences: domain.Preferences{Offline: true}}},
		Examiner:       stubExaminer{tier: domain.RiskLow},
		LookPath:       func(string) (string, error) { return "", errors.New("not found") },
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(report.Failed()); got != 2 {
		t.Fatalf("failed checks = %d, want 2: %+v", got, report.Checks)
	}
	if statusOf(report, "Interpreter") != domain.HealthWarn {
		t.Errorf("offline interpreter should warn")
	}
}

func TestDoctorConfigError(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfigProvider{err: errors.New("bad yaml")}}
	report, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil")
	}
	if statusOf(report, "Config file") != domain.HealthError {
		t.Errorf("config check = %+v", report.Checks)
	}
}
