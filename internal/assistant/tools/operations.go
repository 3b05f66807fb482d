package tools

import (
	"context"
	"encoding/json"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getTasks struct {
	store *crm.Store
}

func (t *getTasks) Name() string { return "get_tasks" }

func (t *getTasks) Description() string {
	return "List work items, optionally filtered by status (open, in_progress, done)."
}

func (t *getTasks) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["open", "in_progress", "done"]},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		},
		"additionalProperties": false
	}`)
}

func (t *getTasks) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
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

	tasks, err := t.store.ListTasks(ctx, tc.TenantID, p.Status, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &Result{Text: "No tasks found.", Link: "/tasks"}, nil
	}

	rows := make([][]string, len(tasks))
	for i, task := range tasks {
		due := "-"
		if task.DueAt != nil {
			due = day(*task.DueAt)
		}
		rows[i] = []string{task.Title, task.Status, task.Assignee, due}
	}
	return &Result{
		Text: markdownTable([]string{"Task", "Status", "Assignee", "Due"}, rows),
		Link: "/tasks",
	}, nil
}

type getProducts struct {
	store *crm.Store
}

func (t *getProducts) Name() string { return "get_products" }

func (t *getProducts) Description() string {
	return "List the active product catalog with unit prices."
}

func (t *getProducts) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}, "additionalProperties": false}`)
}

func (t *getProducts) Execute(ctx context.Context, tc Context, _ json.RawMessage) (*Result, error) {
	products, err := t.store.ListProducts(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &Result{Text: "The product catalog is empty.", Link: "/products"}, nil
	}

	rows := make([][]string, len(products))
	for i, p := range products {
		rows[i] = []string{p.Name, money(p.UnitPrice, p.Currency)}
	}
	return &Result{
		Text: markdownTable([]string{"Product", "Unit price"}, rows),
		Link: "/products",
	}, nil
}
