package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getRevenueByMonth struct {
	store *crm.Store
}

func (t *getRevenueByMonth) Name() string { return "get_revenue_by_month" }

func (t *getRevenueByMonth) Description() string {
	return "Monthly revenue from received payments over the last N months (default 6)."
}

func (t *getRevenueByMonth) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"months": {"type": "integer", "minimum": 1, "maximum": 36}
		},
		"additionalProperties": false
	}`)
}

func (t *getRevenueByMonth) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Months int `json:"months"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Months == 0 {
		p.Months = 6
	}

	series, err := t.store.RevenueByMonth(ctx, tc.TenantID, p.Months, tc.Now)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return &Result{Text: fmt.Sprintf("No revenue recorded in the last %d months.", p.Months)}, nil
	}

	var total float64
	rows := make([][]string, len(series))
	for i, m := range series {
		rows[i] = []string{m.Month, money(m.Amount, tc.BaseCurrency)}
		total += m.Amount
	}
	text := markdownTable([]string{"Month", "Revenue"}, rows)
	text += fmt.Sprintf("\nTotal: **%s**", money(total, tc.BaseCurrency))
	return &Result{Text: text, Link: "/reports/revenue"}, nil
}

type getTopCustomers struct {
	store *crm.Store
}

func (t *getTopCustomers) Name() string { return "get_top_customers" }

func (t *getTopCustomers) Description() string {
	return "Rank customers by paid invoice volume."
}

func (t *getTopCustomers) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "minimum": 1, "maximum": 25}
		},
		"additionalProperties": false
	}`)
}

func (t *getTopCustomers) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		p.Limit = 10
	}

	top, err := t.store.TopCustomers(ctx, tc.TenantID, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return &Result{Text: "No paid invoices yet, so no customer ranking."}, nil
	}

	rows := make([][]string, len(top))
	for i, c := range top {
		rows[i] = []string{fmt.Sprintf("%d", i+1), c.Name, money(c.Revenue, tc.BaseCurrency)}
	}
	return &Result{
		Text: markdownTable([]string{"#", "Customer", "Revenue"}, rows),
		Link: "/customers",
	}, nil
}

type getPayments struct {
	store *crm.Store
}

func (t *getPayments) Name() string { return "get_payments" }

func (t *getPayments) Description() string {
	return "List received payments, newest first."
}

func (t *getPayments) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		},
		"additionalProperties": false
	}`)
}

func (t *getPayments) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		p.Limit = 25
	}

	payments, err := t.store.ListPayments(ctx, tc.TenantID, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return &Result{Text: "No payments received yet."}, nil
	}

	rows := make([][]string, len(payments))
	for i, pay := range payments {
		rows[i] = []string{pay.InvoiceNumber, money(pay.Amount, pay.Currency), day(pay.ReceivedAt)}
	}
	return &Result{
		Text: markdownTable([]string{"Invoice", "Amount", "Received"}, rows),
		Link: "/transactions",
	}, nil
}
