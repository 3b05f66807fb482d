// Package doctor runs installation health checks for `opsdesk doctor`:
// configuration validity, data directory access, database openability,
// tenant registry parseability, and provider credential presence.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/darioristic/opsdesk/internal/config"
	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/crm"
	"github.com/darioristic/opsdesk/internal/tenant"
)

// Check statuses, worst wins for the report.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"`
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Run executes all checks against the given configuration.
func Run(ctx context.Context, cfg *config.Config) *Report {
	report := &Report{}

	report.Checks = append(report.Checks, checkDataDir(cfg))
	report.Checks = append(report.Checks, checkProvider(cfg))
	report.Checks = append(report.Checks, checkTenants(cfg))
	report.Checks = append(report.Checks, checkCRMStore(ctx, cfg))
	report.Checks = append(report.Checks, checkConversationStore(cfg))

	report.Status = StatusPass
	for _, c := range report.Checks {
		switch c.Status {
		case StatusPass:
			report.Summary.Pass++
		case StatusWarn:
			report.Summary.Warn++
			if report.Status == StatusPass {
				report.Status = StatusWarn
			}
		case StatusFail:
			report.Summary.Fail++
			report.Status = StatusFail
		}
	}
	return report
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name:    "data_dir",
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot create %s: %v", cfg.DataDir, err),
			Fix:     "set OPSDESK_DATA_DIR to a writable directory",
		}
	}
	probe := filepath.Join(cfg.DataDir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name:    "data_dir",
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", cfg.DataDir, err),
			Fix:     "fix permissions on the data directory",
		}
	}
	_ = os.Remove(probe)
	return CheckResult{Name: "data_dir", Status: StatusPass, Message: cfg.DataDir + " is writable"}
}

func checkProvider(cfg *config.Config) CheckResult {
	if !cfg.ProviderConfigured() {
		return CheckResult{
			Name:    "llm_provider",
			Status:  StatusWarn,
			Message: "no OpenAI API key configured; chat will answer with a fixed degraded reply",
			Fix:     "set OPSDESK_OPENAI_API_KEY",
		}
	}
	return CheckResult{
		Name:    "llm_provider",
		Status:  StatusPass,
		Message: fmt.Sprintf("key present, chat model %s, triage model %s", cfg.ChatModel, cfg.TriageModel),
	}
}

func checkTenants(cfg *config.Config) CheckResult {
	if cfg.TenantsFile == "" {
		return CheckResult{
			Name:    "tenants",
			Status:  StatusWarn,
			Message: "no tenants file; running with the single default tenant",
			Fix:     "set OPSDESK_TENANTS_FILE to a tenants.yaml for multi-tenant use",
		}
	}
	if _, err := tenant.LoadManager(cfg.TenantsFile, ""); err != nil {
		return CheckResult{
			Name:    "tenants",
			Status:  StatusFail,
			Message: fmt.Sprintf("tenants file invalid: %v", err),
			Fix:     "fix " + cfg.TenantsFile,
		}
	}
	return CheckResult{Name: "tenants", Status: StatusPass, Message: cfg.TenantsFile + " parsed"}
}

func checkCRMStore(ctx context.Context, cfg *config.Config) CheckResult {
	store, err := crm.NewStore(cfg.CRMDBPath())
	if err != nil {
		return CheckResult{
			Name:    "crm_store",
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot open %s: %v", cfg.CRMDBPath(), err),
		}
	}
	defer store.Close()

	if _, err := store.FirstUser(ctx, "default"); errors.Is(err, crm.ErrNoUsers) {
		return CheckResult{
			Name:    "crm_store",
			Status:  StatusWarn,
			Message: "CRM database is empty for the default tenant",
			Fix:     "run `opsdesk seed` to load demo data",
		}
	}
	return CheckResult{Name: "crm_store", Status: StatusPass, Message: cfg.CRMDBPath() + " is usable"}
}

func checkConversationStore(cfg *config.Config) CheckResult {
	store, err := conversation.NewStore(cfg.ConversationDBPath(), 24*time.Hour)
	if err != nil {
		return CheckResult{
			Name:    "conversation_store",
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot open %s: %v", cfg.ConversationDBPath(), err),
		}
	}
	_ = store.Close()
	return CheckResult{Name: "conversation_store", Status: StatusPass, Message: cfg.ConversationDBPath() + " is usable"}
}
