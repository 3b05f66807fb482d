// Package assistant implements the chat orchestration layer: per-request
// execution context, the specialist agent table, the triage router that
// classifies a message to one specialist, and the dispatch loop that drives
// a bounded tool-calling conversation with the model.
//
// The package's one hard guarantee is graceful degradation: triage and
// dispatch never return an error to the caller. Misrouting falls back to the
// general specialist, generation failures become a fixed apology, and a
// failing tool degrades a single step, never the whole turn.
package assistant

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied when the session carries no value.
const (
	DefaultCurrency = "EUR"
	DefaultLocale   = "en-US"
	DefaultTimezone = "UTC"
)

// Session is the raw per-request identity and preference data the server
// layer resolves from authentication and the tenant registry. Optional
// fields may be empty; BuildContext fills in defaults.
type Session struct {
	TenantID     string
	UserID       string // raw user id, not yet tenant-scoped
	CompanyName  string
	BaseCurrency string
	Locale       string
	Timezone     string
}

// ExecutionContext is the per-request context every prompt template and tool
// call reads from. Built once per inbound message, never persisted.
type ExecutionContext struct {
	TenantID       string
	UserID         string // scoped "<raw>:<tenant>" so keyed stores cannot collide across tenants
	CompanyName    string
	BaseCurrency   string
	Locale         string
	Timezone       string
	Now            time.Time // capture-time snapshot for all time-relative queries
	ConversationID string
	WorkingMemory  string // user's cross-conversation notes; read-only during the turn
}

// BuildContext derives an ExecutionContext from a session. It always
// succeeds: absent optional fields get defaults, and a missing conversation
// id gets a fresh uuid so the turn still lands in a retrievable conversation.
func BuildContext(sess Session, conversationID string) ExecutionContext {
	ec := ExecutionContext{
		TenantID:       sess.TenantID,
		UserID:         sess.UserID + ":" + sess.TenantID,
		CompanyName:    sess.CompanyName,
		BaseCurrency:   sess.BaseCurrency,
		Locale:         sess.Locale,
		Timezone:       sess.Timezone,
		Now:            time.Now().UTC(),
		ConversationID: conversationID,
	}
	if ec.BaseCurrency == "" {
		ec.BaseCurrency = DefaultCurrency
	}
	if ec.Locale == "" {
		ec.Locale = DefaultLocale
	}
	if ec.Timezone == "" {
		ec.Timezone = DefaultTimezone
	}
	if ec.ConversationID == "" {
		ec.ConversationID = uuid.New().String()
	}
	return ec
}
