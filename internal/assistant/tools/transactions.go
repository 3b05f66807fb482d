package tools

import (
	"context"
	"encoding/json"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getTransactions struct {
	store *crm.Store
}

func (t *getTransactions) Name() string { return "get_transactions" }

func (t *getTransactions) Description() string {
	return "List ledger movements, optionally filtered by category, newest first. Negative amounts are expenses."
}

func (t *getTransactions) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"category": {"type": "string", "minLength": 1},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		},
		"additionalProperties": false
	}`)
}

func (t *getTransactions) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Category string `json:"category"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		p.Limit = 25
	}

	txs, err := t.store.ListTransactions(ctx, tc.TenantID, p.Category, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return &Result{Text: "No transactions found.", Link: "/transactions"}, nil
	}

	rows := make([][]string, len(txs))
	for i, tx := range txs {
		rows[i] = []string{day(tx.OccurredAt), tx.Description, tx.Category, money(tx.Amount, tx.Currency)}
	}
	return &Result{
		Text: markdownTable([]string{"Date", "Description", "Category", "Amount"}, rows),
		Link: "/transactions",
	}, nil
}
