package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getProfitSummary struct {
	store *crm.Store
}

func (t *getProfitSummary) Name() string { return "get_profit_summary" }

func (t *getProfitSummary) Description() string {
	return "Net income vs. expenses over the last N months (default 12)."
}

func (t *getProfitSummary) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"months": {"type": "integer", "minimum": 1, "maximum": 36}
		},
		"additionalProperties": false
	}`)
}

func (t *getProfitSummary) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Months int `json:"months"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Months == 0 {
		p.Months = 12
	}

	from := tc.Now.AddDate(0, -p.Months, 0)
	sum, err := t.store.ProfitBetween(ctx, tc.TenantID, from, tc.Now)
	if err != nil {
		return nil, err
	}

	rows := [][]string{
		{"Income", money(sum.Income, tc.BaseCurrency)},
		{"Expenses", money(sum.Expenses, tc.BaseCurrency)},
		{"Net", money(sum.Net, tc.BaseCurrency)},
	}
	text := fmt.Sprintf("Profit over the last %d months:\n\n", p.Months)
	text += markdownTable([]string{"", "Amount"}, rows)
	return &Result{Text: text, Link: "/reports/profit"}, nil
}

type getCashFlow struct {
	store *crm.Store
}

func (t *getCashFlow) Name() string { return "get_cash_flow" }

func (t *getCashFlow) Description() string {
	return "Net cash movement per month over the last N months (default 6)."
}

func (t *getCashFlow) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"months": {"type": "integer", "minimum": 1, "maximum": 36}
		},
		"additionalProperties": false
	}`)
}

func (t *getCashFlow) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Months int `json:"months"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Months == 0 {
		p.Months = 6
	}

	series, err := t.store.CashFlowByMonth(ctx, tc.TenantID, p.Months, tc.Now)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return &Result{Text: fmt.Sprintf("No transactions in the last %d months.", p.Months)}, nil
	}

	rows := make([][]string, len(series))
	for i, m := range series {
		rows[i] = []string{m.Month, money(m.Amount, tc.BaseCurrency)}
	}
	return &Result{
		Text: markdownTable([]string{"Month", "Net flow"}, rows),
		Link: "/reports/cashflow",
	}, nil
}

type getExpenseBreakdown struct {
	store *crm.Store
}

func (t *getExpenseBreakdown) Name() string { return "get_expense_breakdown" }

func (t *getExpenseBreakdown) Description() string {
	return "Spend per expense category over the last N months (default 12), largest first."
}

func (t *getExpenseBreakdown) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"months": {"type": "integer", "minimum": 1, "maximum": 36}
		},
		"additionalProperties": false
	}`)
}

func (t *getExpenseBreakdown) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Months int `json:"months"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Months == 0 {
		p.Months = 12
	}

	from := tc.Now.AddDate(0, -p.Months, 0)
	cats, err := t.store.ExpensesByCategory(ctx, tc.TenantID, from, tc.Now)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return &Result{Text: fmt.Sprintf("No expenses recorded in the last %d months.", p.Months)}, nil
	}

	var total float64
	rows := make([][]string, len(cats))
	for i, c := range cats {
		rows[i] = []string{c.Category, money(c.Amount, tc.BaseCurrency)}
		total += c.Amount
	}
	text := markdownTable([]string{"Category", "Spend"}, rows)
	text += fmt.Sprintf("\nTotal: **%s**", money(total, tc.BaseCurrency))
	return &Result{Text: text, Link: "/transactions?type=expense"}, nil
}
