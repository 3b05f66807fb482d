package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/darioristic/opsdesk/internal/crm"
)

// ValidationError reports tool parameters rejected against the tool's JSON
// Schema before any I/O happened.
type ValidationError struct {
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s", e.Tool, e.Detail)
}

// UnknownToolError is returned when the model asks for a tool that is not
// in the registry.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Tool)
}

// Registry is the static catalog of tools, partitioned into capability
// groups. Immutable after construction; safe for unsynchronized concurrent
// reads.
type Registry struct {
	tools   map[string]Tool
	groups  map[string][]string             // group -> tool names
	schemas map[string]*gojsonschema.Schema // tool name -> compiled schema
}

// NewRegistry builds the full tool catalog over the given CRM store.
func NewRegistry(store *crm.Store) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]Tool),
		groups:  make(map[string][]string),
		schemas: make(map[string]*gojsonschema.Schema),
	}

	register := func(t Tool, groups ...string) error {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(t.InputSchema()))
		if err != nil {
			return fmt.Errorf("compiling schema for %s: %w", t.Name(), err)
		}
		r.tools[t.Name()] = t
		r.schemas[t.Name()] = schema
		for _, g := range groups {
			r.groups[g] = append(r.groups[g], t.Name())
		}
		return nil
	}

	catalog := []struct {
		tool   Tool
		groups []string
	}{
		{&getInvoices{store}, []string{GroupInvoices, GroupSales}},
		{&getOverdueInvoices{store}, []string{GroupInvoices}},
		{&getInvoiceSummary{store}, []string{GroupInvoices, GroupAnalysis}},
		{&createInvoice{store}, []string{GroupInvoices}},
		{&getCustomers{store}, []string{GroupCustomers, GroupSales}},
		{&findCustomer{store}, []string{GroupCustomers}},
		{&createCustomer{store}, []string{GroupCustomers}},
		{&getRevenueByMonth{store}, []string{GroupSales, GroupAnalysis}},
		{&getTopCustomers{store}, []string{GroupSales}},
		{&getPayments{store}, []string{GroupSales, GroupTransactions}},
		{&getProfitSummary{store}, []string{GroupAnalysis}},
		{&getCashFlow{store}, []string{GroupAnalysis}},
		{&getExpenseBreakdown{store}, []string{GroupAnalysis, GroupTransactions}},
		{&getCompanyOverview{store}, []string{GroupResearch}},
		{&getTasks{store}, []string{GroupOperations}},
		{&getProducts{store}, []string{GroupOperations, GroupSales}},
		{&getTimeEntries{store}, []string{GroupTimetracking}},
		{&getTimeSummary{store}, []string{GroupTimetracking}},
		{&getTransactions{store}, []string{GroupTransactions}},
	}
	for _, entry := range catalog {
		if err := register(entry.tool, entry.groups...); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the full catalog keyed by tool name.
func (r *Registry) All() map[string]Tool {
	out := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		out[name] = t
	}
	return out
}

// ForGroups returns the union of the named capability groups. Unknown group
// names contribute nothing; an empty result is possible and callers decide
// what that means (the assistant layer falls back to All for the general
// agent).
func (r *Registry) ForGroups(groups ...string) map[string]Tool {
	out := make(map[string]Tool)
	for _, g := range groups {
		for _, name := range r.groups[g] {
			out[name] = r.tools[name]
		}
	}
	return out
}

// Names returns all tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute validates params against the tool's schema and runs the executor.
// A schema rejection returns *ValidationError without touching the store.
// Executor failures come back as a marked failure Result, not an error: a
// broken query degrades one tool call, never the whole turn.
func (r *Registry) Execute(ctx context.Context, tc Context, name string, params json.RawMessage) (*Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Tool: name}
	}

	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	res, err := r.schemas[name].Validate(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return nil, &ValidationError{Tool: name, Detail: "parameters are not valid JSON"}
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		return nil, &ValidationError{Tool: name, Detail: strings.Join(details, "; ")}
	}

	out, execErr := t.Execute(ctx, tc, params)
	if execErr != nil {
		return failure("%s failed: %v", name, execErr), nil
	}
	return out, nil
}
