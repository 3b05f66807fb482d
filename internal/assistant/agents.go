package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/darioristic/opsdesk/internal/assistant/tools"
)

// SpecialistGeneral is the fallback specialist: full tool registry, broad
// prompt. Triage routes here whenever classification fails or nothing more
// specific fits.
const SpecialistGeneral = "general"

// Specialist pairs a name with a capability description, a system-prompt
// role block, and the capability groups whose tools it may call. An empty
// Groups slice means the full registry.
type Specialist struct {
	Name        string
	Description string
	Groups      []string
	role        string // role-specific instruction block appended to the shared preamble
}

// specialists is the canonical table, built once and read-only afterwards.
// Tool subsets are expressed as capability groups rather than tool names so
// adding a tool to a group extends every specialist using that group.
var specialists = []Specialist{
	{
		Name:        "invoices",
		Description: "Invoicing: listing, overdue tracking, summaries, creating draft invoices.",
		Groups:      []string{tools.GroupInvoices},
		role:        "You are the invoicing specialist. Answer questions about invoices, payment status and overdue amounts, and create draft invoices when asked.",
	},
	{
		Name:        "customers",
		Description: "Customer records: listing, searching, creating customers.",
		Groups:      []string{tools.GroupCustomers},
		role:        "You are the customer-records specialist. Look up, list and create customer records.",
	},
	{
		Name:        "sales",
		Description: "Sales performance: revenue, top customers, payments received.",
		Groups:      []string{tools.GroupSales, tools.GroupCustomers},
		role:        "You are the sales specialist. Report on revenue development, best customers and incoming payments.",
	},
	{
		Name:        "analytics",
		Description: "Financial analysis: profit, cash flow, expense breakdowns.",
		Groups:      []string{tools.GroupAnalysis},
		role:        "You are the financial analyst. Explain profit, cash flow and spending patterns with concrete numbers.",
	},
	{
		Name:        "reports",
		Description: "Cross-domain summaries combining invoices, sales and financial figures.",
		Groups:      []string{tools.GroupAnalysis, tools.GroupSales, tools.GroupInvoices},
		role:        "You are the reporting specialist. Combine invoice, sales and financial data into concise management summaries.",
	},
	{
		Name:        "research",
		Description: "Company-wide overviews and background snapshots.",
		Groups:      []string{tools.GroupResearch},
		role:        "You are the research specialist. Provide company-wide snapshots and background context.",
	},
	{
		Name:        "operations",
		Description: "Operational work items: tasks and the product catalog.",
		Groups:      []string{tools.GroupOperations},
		role:        "You are the operations specialist. Report on tasks, their owners and the product catalog.",
	},
	{
		Name:        "timetracking",
		Description: "Logged work: time entries and per-project hour totals.",
		Groups:      []string{tools.GroupTimetracking},
		role:        "You are the time-tracking specialist. Report on logged hours, projects and billable work.",
	},
	{
		Name:        "transactions",
		Description: "Bank and ledger movements, income and expenses.",
		Groups:      []string{tools.GroupTransactions},
		role:        "You are the transactions specialist. Report on ledger movements, income and expenses.",
	},
	{
		Name:        SpecialistGeneral,
		Description: "Anything else: full access to every capability.",
		Groups:      nil, // full registry
		role:        "You are a versatile business assistant with access to all company data. Answer whatever is asked, using tools where they help.",
	},
}

var specialistsByName = func() map[string]Specialist {
	m := make(map[string]Specialist, len(specialists))
	for _, s := range specialists {
		m[s.Name] = s
	}
	return m
}()

// Specialists returns the directory of all specialists, sorted by name.
// Served verbatim by the agents listing endpoint.
func Specialists() []Specialist {
	out := make([]Specialist, len(specialists))
	copy(out, specialists)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupSpecialist resolves a name to its specialist, falling back to the
// general specialist for unknown names.
func LookupSpecialist(name string) Specialist {
	if s, ok := specialistsByName[name]; ok {
		return s
	}
	return specialistsByName[SpecialistGeneral]
}

// IsSpecialist reports closed-set membership of a specialist name.
func IsSpecialist(name string) bool {
	_, ok := specialistsByName[name]
	return ok
}

// Tools projects the specialist's allow-listed subset of the registry. The
// general specialist (and, via LookupSpecialist, any unknown name) gets the
// full registry so it can answer anything triage failed to route precisely.
func (s Specialist) Tools(reg *tools.Registry) map[string]tools.Tool {
	if len(s.Groups) == 0 {
		return reg.All()
	}
	return reg.ForGroups(s.Groups...)
}

// SystemPrompt interpolates the execution context into the specialist's
// instruction block.
func (s Specialist) SystemPrompt(ec ExecutionContext) string {
	var b strings.Builder
	b.WriteString(s.role)
	b.WriteString("\n\n")
	if ec.CompanyName != "" {
		fmt.Fprintf(&b, "You work for %s. ", ec.CompanyName)
	}
	fmt.Fprintf(&b, "Amounts are in %s unless stated otherwise. ", ec.BaseCurrency)
	fmt.Fprintf(&b, "The user's locale is %s and their timezone is %s. ", ec.Locale, ec.Timezone)
	fmt.Fprintf(&b, "The current date and time is %s.\n\n", ec.Now.Format("Monday, 2 January 2006 15:04 MST"))
	b.WriteString("Use the provided tools to fetch real data before answering; never invent numbers. ")
	b.WriteString("Answer in the user's language, concisely, using markdown tables where they fit. ")
	b.WriteString("When a tool reports a failure, tell the user what could not be retrieved instead of guessing.")
	if ec.WorkingMemory != "" {
		b.WriteString("\n\nThe user keeps these notes across conversations. Consult them when they are relevant; you cannot change them:\n")
		b.WriteString(ec.WorkingMemory)
	}
	return b.String()
}
