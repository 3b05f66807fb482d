package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getInvoices struct {
	store *crm.Store
}

func (t *getInvoices) Name() string { return "get_invoices" }

func (t *getInvoices) Description() string {
	return "List the company's invoices, optionally filtered by status (draft, sent, paid, overdue)."
}

func (t *getInvoices) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["draft", "sent", "paid", "overdue"]},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		},
		"additionalProperties": false
	}`)
}

func (t *getInvoices) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Status string `json:"status"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		p.Limit = 25
	}

	invoices, err := t.store.ListInvoices(ctx, tc.TenantID, p.Status, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return &Result{Text: "No invoices found.", Link: "/invoices"}, nil
	}

	rows := make([][]string, len(invoices))
	for i, inv := range invoices {
		rows[i] = []string{inv.Number, inv.CustomerName, inv.Status, money(inv.Amount, inv.Currency), day(inv.DueAt)}
	}
	return &Result{
		Text: markdownTable([]string{"Number", "Customer", "Status", "Amount", "Due"}, rows),
		Link: "/invoices",
	}, nil
}

type getOverdueInvoices struct {
	store *crm.Store
}

func (t *getOverdueInvoices) Name() string { return "get_overdue_invoices" }

func (t *getOverdueInvoices) Description() string {
	return "List unpaid invoices that are past their due date, most overdue first."
}

func (t *getOverdueInvoices) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`)
}

func (t *getOverdueInvoices) Execute(ctx context.Context, tc Context, _ json.RawMessage) (*Result, error) {
	invoices, err := t.store.OverdueInvoices(ctx, tc.TenantID, tc.Now)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return &Result{Text: "There are no overdue invoices. 🎉", Link: "/invoices?filter=overdue"}, nil
	}

	var total float64
	rows := make([][]string, len(invoices))
	for i, inv := range invoices {
		daysLate := int(tc.Now.Sub(inv.DueAt).Hours() / 24)
		rows[i] = []string{inv.Number, inv.CustomerName, money(inv.Amount, inv.Currency), day(inv.DueAt), fmt.Sprintf("%d", daysLate)}
		total += inv.Amount
	}
	text := markdownTable([]string{"Number", "Customer", "Amount", "Due", "Days late"}, rows)
	text += fmt.Sprintf("\n**Total overdue: %s**", money(total, tc.BaseCurrency))
	return &Result{Text: text, Link: "/invoices?filter=overdue"}, nil
}

type getInvoiceSummary struct {
	store *crm.Store
}

func (t *getInvoiceSummary) Name() string { return "get_invoice_summary" }

func (t *getInvoiceSummary) Description() string {
	return "Summarize invoice counts by status and outstanding vs. paid totals."
}

func (t *getInvoiceSummary) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`)
}

func (t *getInvoiceSummary) Execute(ctx context.Context, tc Context, _ json.RawMessage) (*Result, error) {
	sum, err := t.store.InvoiceTotals(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, status := range []string{"draft", "sent", "paid", "overdue"} {
		if n, ok := sum.CountByStatus[status]; ok {
			rows = append(rows, []string{status, fmt.Sprintf("%d", n)})
		}
	}
	text := markdownTable([]string{"Status", "Count"}, rows)
	text += fmt.Sprintf("\nOutstanding: **%s** · Paid: **%s**",
		money(sum.TotalOutstanding, tc.BaseCurrency), money(sum.TotalPaid, tc.BaseCurrency))
	return &Result{Text: text, Link: "/invoices"}, nil
}
