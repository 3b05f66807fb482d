package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/darioristic/opsdesk/internal/crm"
)

type createCustomer struct {
	store *crm.Store
}

func (t *createCustomer) Name() string { return "create_customer" }

func (t *createCustomer) Description() string {
	return "Create a new customer record. Refuses if a customer with the same name already exists."
}

func (t *createCustomer) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"email": {"type": "string", "minLength": 3},
			"country": {"type": "string"}
		},
		"required": ["name"],
		"additionalProperties": false
	}`)
}

func (t *createCustomer) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return failure("create_customer needs a non-empty name"), nil
	}

	// Exact-name collision check. Substring matches that are not exact are
	// fine; "Acme GmbH" does not block creating "Acme Oy".
	existing, err := t.store.FindCustomersByName(ctx, tc.TenantID, p.Name)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, p.Name) {
			return failure("a customer named %q already exists, so nothing was created. Use find_customer to look them up.", c.Name), nil
		}
	}

	actor, err := t.store.FirstUser(ctx, tc.TenantID)
	if errors.Is(err, crm.ErrNoUsers) {
		return failure("no user exists in this workspace to record as the creator, so nothing was created"), nil
	}
	if err != nil {
		return nil, err
	}

	c, err := t.store.CreateCustomer(ctx, tc.TenantID, crm.NewCustomer{
		Name:      p.Name,
		Email:     p.Email,
		Country:   p.Country,
		CreatedBy: actor.ID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("Created customer **%s** (%s).", c.Name, c.ID),
		Link: "/customers/" + c.ID,
	}, nil
}
