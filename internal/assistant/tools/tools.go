// Package tools provides the assistant's catalog of schema-validated data
// operations. Every tool wraps a tenant-scoped CRM query (or, for the two
// write tools, a guarded write) and formats the result as markdown for the
// model to relay. Tools are registered once at startup into capability
// groups; there is no runtime registration or removal.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Capability groups. A specialist agent's allow-list is a set of groups.
const (
	GroupInvoices     = "invoices"
	GroupCustomers    = "customers"
	GroupSales        = "sales"
	GroupAnalysis     = "analysis"
	GroupResearch     = "research"
	GroupOperations   = "operations"
	GroupTimetracking = "timetracking"
	GroupTransactions = "transactions"
)

// failurePrefix marks tool output that reports a failure instead of data, so
// a single failing tool degrades the answer rather than aborting the turn.
const failurePrefix = "⚠️ "

// Context carries the per-request execution context into tool executors.
// TenantID scopes every query; Now is the request's capture-time snapshot
// used for all time-relative queries.
type Context struct {
	TenantID     string
	UserID       string
	BaseCurrency string
	Locale       string
	Timezone     string
	Now          time.Time
}

// Result is a tool's output: a markdown text block and an optional deep link
// into the web UI.
type Result struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Tool is the interface all assistant tools implement. Execute receives
// parameters already validated against InputSchema; it must never mutate
// data outside the Context's tenant scope.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error)
}

// failure formats a tool-level failure as a marked text result. Returned in
// place of an error so the dispatch loop keeps going.
func failure(format string, args ...interface{}) *Result {
	return &Result{Text: failurePrefix + fmt.Sprintf(format, args...)}
}

// markdownTable renders a compact markdown table.
func markdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return b.String()
}

// money formats an amount with its currency code.
func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// day formats a timestamp as a date.
func day(t time.Time) string {
	return t.Format("2006-01-02")
}
