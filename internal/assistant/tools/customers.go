package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getCustomers struct {
	store *crm.Store
}

func (t *getCustomers) Name() string { return "get_customers" }

func (t *getCustomers) Description() string {
	return "List the company's customers, newest first."
}

func (t *getCustomers) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		},
		"additionalProperties": false
	}`)
}

func (t *getCustomers) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Limit == 0 {
		p.Limit = 25
	}

	customers, err := t.store.ListCustomers(ctx, tc.TenantID, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return &Result{Text: "No customers yet.", Link: "/customers"}, nil
	}

	rows := make([][]string, len(customers))
	for i, c := range customers {
		rows[i] = []string{c.Name, c.Email, c.Country, day(c.CreatedAt)}
	}
	return &Result{
		Text: markdownTable([]string{"Name", "Email", "Country", "Since"}, rows),
		Link: "/customers",
	}, nil
}

type findCustomer struct {
	store *crm.Store
}

func (t *findCustomer) Name() string { return "find_customer" }

func (t *findCustomer) Description() string {
	return "Find customers whose name matches a search term (case-insensitive substring match)."
}

func (t *findCustomer) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1}
		},
		"required": ["name"],
		"additionalProperties": false
	}`)
}

func (t *findCustomer) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	customers, err := t.store.FindCustomersByName(ctx, tc.TenantID, p.Name)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return &Result{Text: fmt.Sprintf("No customer matching %q.", p.Name)}, nil
	}

	rows := make([][]string, len(customers))
	for i, c := range customers {
		rows[i] = []string{c.Name, c.Email, c.Country}
	}
	return &Result{
		Text: markdownTable([]string{"Name", "Email", "Country"}, rows),
		Link: "/customers",
	}, nil
}
