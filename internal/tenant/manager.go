// Package tenant holds the tenant registry: which companies exist, which API
// key authenticates each one, and each tenant's display/formatting defaults
// and request rate limit. Loaded once at startup from tenants.yaml; read-only
// afterwards.
package tenant

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Domain errors for the tenant package.
var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrUnknownAPIKey     = errors.New("unknown api key")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Tenant is one isolated customer of the installation.
type Tenant struct {
	ID           string `yaml:"id"`
	CompanyName  string `yaml:"company_name"`
	APIKey       string `yaml:"api_key"`
	BaseCurrency string `yaml:"base_currency"`
	Locale       string `yaml:"locale"`
	Timezone     string `yaml:"timezone"`
	RateLimit    int    `yaml:"rate_limit"` // requests per second; 0 means no limit
}

type tenantsFile struct {
	Tenants []Tenant `yaml:"tenants"`
}

// Manager resolves API keys to tenants and enforces per-tenant rate limits.
// The tenant set is immutable after construction; limiters are internally
// synchronized, so the manager is safe for concurrent use.
type Manager struct {
	tenants  map[string]*Tenant
	limiters map[string]*rate.Limiter
}

// NewManager builds a manager over a fixed tenant set.
func NewManager(tenants []Tenant) (*Manager, error) {
	m := &Manager{
		tenants:  make(map[string]*Tenant),
		limiters: make(map[string]*rate.Limiter),
	}
	for i := range tenants {
		t := &tenants[i]
		if t.ID == "" {
			return nil, fmt.Errorf("tenant %d has no id", i)
		}
		if t.APIKey == "" {
			return nil, fmt.Errorf("tenant %q has no api_key", t.ID)
		}
		if _, dup := m.tenants[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		m.tenants[t.ID] = t
		if t.RateLimit > 0 {
			m.limiters[t.ID] = rate.NewLimiter(rate.Limit(t.RateLimit), t.RateLimit*2) // burst = 2s worth
		}
	}
	return m, nil
}

// LoadManager reads tenants.yaml and builds a manager. An empty path yields
// a single default tenant keyed by defaultAPIKey so a fresh installation
// works without a tenants file.
func LoadManager(path, defaultAPIKey string) (*Manager, error) {
	if path == "" {
		return NewManager([]Tenant{{
			ID:          "default",
			CompanyName: "Default",
			APIKey:      defaultAPIKey,
		}})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tenants file: %w", err)
	}
	var f tenantsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing tenants file: %w", err)
	}
	if len(f.Tenants) == 0 {
		return nil, fmt.Errorf("tenants file %s defines no tenants", path)
	}
	return NewManager(f.Tenants)
}

// Authenticate resolves an API key to its tenant. Comparison is constant
// time per candidate so key lookup does not leak prefix length.
func (m *Manager) Authenticate(apiKey string) (*Tenant, error) {
	if apiKey == "" {
		return nil, ErrUnknownAPIKey
	}
	for _, t := range m.tenants {
		if subtle.ConstantTimeCompare([]byte(t.APIKey), []byte(apiKey)) == 1 {
			return t, nil
		}
	}
	return nil, ErrUnknownAPIKey
}

// Get returns a tenant by id.
func (m *Manager) Get(tenantID string) (*Tenant, error) {
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// Allow checks the tenant's rate limit, consuming one token. Tenants without
// a configured limit are always allowed.
func (m *Manager) Allow(tenantID string) error {
	if _, ok := m.tenants[tenantID]; !ok {
		return ErrTenantNotFound
	}
	if lim, ok := m.limiters[tenantID]; ok && !lim.Allow() {
		return ErrRateLimitExceeded
	}
	return nil
}
