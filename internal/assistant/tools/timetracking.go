package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/darioristic/opsdesk/internal/crm"
)

type getTimeEntries struct {
	store *crm.Store
}

func (t *getTimeEntries) Name() string { return "get_time_entries" }

func (t *getTimeEntries) Description() string {
	return "List logged work over the last N days (default 14), newest first."
}

func (t *getTimeEntries) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"days": {"type": "integer", "minimum": 1, "maximum": 365},
			"limit": {"type": "integer", "minimum": 1, "maximum": 100}
		},
		"additionalProperties": false
	}`)
}

func (t *getTimeEntries) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Days  int `json:"days"`
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Days == 0 {
		p.Days = 14
	}
	if p.Limit == 0 {
		p.Limit = 25
	}

	from := tc.Now.AddDate(0, 0, -p.Days)
	entries, err := t.store.ListTimeEntries(ctx, tc.TenantID, from, tc.Now, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &Result{Text: fmt.Sprintf("No time logged in the last %d days.", p.Days)}, nil
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		billable := "no"
		if e.Billable {
			billable = "yes"
		}
		rows[i] = []string{day(e.Date), e.UserName, e.Project, fmt.Sprintf("%.1fh", e.Hours), billable}
	}
	return &Result{
		Text: markdownTable([]string{"Date", "Who", "Project", "Hours", "Billable"}, rows),
		Link: "/tracker",
	}, nil
}

type getTimeSummary struct {
	store *crm.Store
}

func (t *getTimeSummary) Name() string { return "get_time_summary" }

func (t *getTimeSummary) Description() string {
	return "Total logged hours per project over the last N days (default 30)."
}

func (t *getTimeSummary) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"days": {"type": "integer", "minimum": 1, "maximum": 365}
		},
		"additionalProperties": false
	}`)
}

func (t *getTimeSummary) Execute(ctx context.Context, tc Context, params json.RawMessage) (*Result, error) {
	var p struct {
		Days int `json:"days"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Days == 0 {
		p.Days = 30
	}

	from := tc.Now.AddDate(0, 0, -p.Days)
	projects, err := t.store.HoursByProject(ctx, tc.TenantID, from, tc.Now)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return &Result{Text: fmt.Sprintf("No time logged in the last %d days.", p.Days)}, nil
	}

	var total float64
	rows := make([][]string, len(projects))
	for i, pr := range projects {
		rows[i] = []string{pr.Category, fmt.Sprintf("%.1fh", pr.Amount)}
		total += pr.Amount
	}
	text := markdownTable([]string{"Project", "Hours"}, rows)
	text += fmt.Sprintf("\nTotal: **%.1fh** over %d days", total, p.Days)
	return &Result{Text: text, Link: "/tracker"}, nil
}
