package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/darioristic/opsdesk/internal/crm"
)

type createInvoice struct {
	store *crm.Store
}

func (t *createInvoice) Name() string { return "create_invoice" }

func (t *createInvoice) Description() string {
	return "Create a draft invoice for a customer identified by name. Refuses if the name matches zero or more than one customer."
}

func (t *createInvoice) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"customer_name": {"type": "string", "minLength": 1},
			"amount": {"type": "number", "exclusiveMinimum": 0},
			"currency": {"type": "string", "minLength": 3, "maxLength": 3},
			"due_in_days": {"type": "integer", "minimum": 1, "maximum": 365}
		},
		"required": ["customer_name", "amount"],
		"additionalProperties": false
	}`)
}

func (t *createInvoice) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		CustomerName string  `json:"customer_name"`
		Amount       float64 `json:"amount"`
		Currency     string  `json:"currency"`
		DueInDays    int     `json:"due_in_days"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Currency == "" {
		p.Currency = tc.BaseCurrency
	}
	if p.DueInDays == 0 {
		p.DueInDays = 30
	}

	// The customer reference must resolve to exactly one record before any
	// write happens. Zero or many matches means no invoice.
	matches, err := t.store.FindCustomersByName(ctx, tc.TenantID, strings.TrimSpace(p.CustomerName))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return failure("no customer matching %q, so no invoice was created. Use create_customer first if they are new.", p.CustomerName), nil
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, c := range matches {
			names[i] = c.Name
		}
		return failure("%q matches %d customers (%s), so no invoice was created. Ask which one is meant.",
			p.CustomerName, len(matches), strings.Join(names, ", ")), nil
	}
	customer := matches[0]

	actor, err := t.store.FirstUser(ctx, tc.TenantID)
	if errors.Is(err, crm.ErrNoUsers) {
		return failure("no user exists in this workspace to issue the invoice, so nothing was created"), nil
	}
	if err != nil {
		return nil, err
	}

	inv, err := t.store.CreateInvoice(ctx, tc.TenantID, crm.NewInvoice{
		CustomerID: customer.ID,
		Amount:     p.Amount,
		Currency:   strings.ToUpper(p.Currency),
		DueAt:      tc.Now.AddDate(0, 0, p.DueInDays),
		CreatedBy:  actor.ID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("Created draft invoice **%s** for %s over %s, due %s.",
			inv.Number, customer.Name, money(inv.Amount, inv.Currency), day(inv.DueAt)),
		Link: "/invoices/" + inv.ID,
	}, nil
}
