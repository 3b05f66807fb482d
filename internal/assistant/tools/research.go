package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getCompanyOverview struct {
	store *crm.Store
}

func (t *getCompanyOverview) Name() string { return "get_company_overview" }

func (t *getCompanyOverview) Description() string {
	return "Headline company snapshot: customers, open invoices, outstanding amount, revenue YTD, open tasks."
}

func (t *getCompanyOverview) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`)
}

func (t *getCompanyOverview) Execute(ctx context.Context, tc Context, _ json.RawMessage) (*Result, error) {
	o, err := t.store.CompanyOverview(ctx, tc.TenantID, tc.Now)
	if err != nil {
		return nil, err
	}
	rows := [][]string{
		{"Customers", fmt.Sprintf("%d", o.Customers)},
		{"Open invoices", fmt.Sprintf("%d", o.OpenInvoices)},
		{"Outstanding", money(o.Outstanding, tc.BaseCurrency)},
		{"Revenue YTD", money(o.RevenueYTD, tc.BaseCurrency)},
		{"Open tasks", fmt.Sprintf("%d", o.OpenTasks)},
	}
	return &Result{
		Text: markdownTable([]string{"Metric", "Value"}, rows),
		Link: "/dashboard",
	}, nil
}
