package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Seed loads a small demo dataset for the given tenant so the assistant is
// usable immediately after install. Idempotent per tenant: a second call on a
// tenant that already has users is a no-op.
func (s *Store) Seed(ctx context.Context, tenantID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE tenant_id = ?`, tenantID).Scan(&n); err != nil {
		return fmt.Errorf("checking seed state: %w", err)
	}
	if n > 0 {
		return nil
	}

	now := time.Now().UTC()
	exec := func(q string, args ...interface{}) error {
		_, err := s.db.ExecContext(ctx, q, args...)
		return err
	}

	users := []struct{ name, email string }{
		{"Mia Kovač", "mia@example.com"},
		{"Jonas Weber", "jonas@example.com"},
	}
	userIDs := make([]string, len(users))
	for i, u := range users {
		userIDs[i] = "usr_" + uuid.New().String()[:12]
		if err := exec(`INSERT INTO users (id, tenant_id, full_name, email, created_at) VALUES (?, ?, ?, ?, ?)`,
			userIDs[i], tenantID, u.name, u.email, now.Add(time.Duration(i)*time.Second)); err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
	}

	customers := []struct{ name, email, country string }{
		{"Acme GmbH", "billing@acme.example", "DE"},
		{"Northwind Oy", "invoices@northwind.example", "FI"},
		{"Vandelay d.o.o.", "office@vandelay.example", "SI"},
	}
	custIDs := make([]string, len(customers))
	for i, c := range customers {
		custIDs[i] = "cus_" + uuid.New().String()[:12]
		if err := exec(`INSERT INTO customers (id, tenant_id, name, email, country, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			custIDs[i], tenantID, c.name, c.email, c.country, now.AddDate(0, -6, i)); err != nil {
			return fmt.Errorf("seeding customers: %w", err)
		}
	}

	invoices := []struct {
		cust     int
		amount   float64
		issuedMo int // months ago
		dueDays  int
		paid     bool
	}{
		{0, 2400, 3, 14, true},
		{0, 1800, 2, 14, true},
		{1, 5200, 2, 30, false}, // overdue
		{1, 990, 1, 20, false},  // overdue
		{2, 3100, 0, 30, false}, // open, not yet due
	}
	for i, in := range invoices {
		issued := now.AddDate(0, -in.issuedMo, 0)
		due := issued.AddDate(0, 0, in.dueDays)
		invID := "inv_" + uuid.New().String()[:12]
		var paidAt interface{}
		status := "sent"
		if in.paid {
			paidAt = issued.AddDate(0, 0, in.dueDays-2)
			status = "paid"
		}
		if err := exec(`INSERT INTO invoices (id, tenant_id, customer_id, number, status, currency, amount, issued_at, due_at, paid_at)
			VALUES (?, ?, ?, ?, ?, 'EUR', ?, ?, ?, ?)`,
			invID, tenantID, custIDs[in.cust], fmt.Sprintf("INV-%d-%04d", issued.Year(), i+1),
			status, in.amount, issued, due, paidAt); err != nil {
			return fmt.Errorf("seeding invoices: %w", err)
		}
		if in.paid {
			if err := exec(`INSERT INTO payments (id, tenant_id, invoice_id, amount, currency, received_at)
				VALUES (?, ?, ?, ?, 'EUR', ?)`,
				"pay_"+uuid.New().String()[:12], tenantID, invID, in.amount, issued.AddDate(0, 0, in.dueDays-2)); err != nil {
				return fmt.Errorf("seeding payments: %w", err)
			}
		}
	}

	products := []struct {
		name  string
		price float64
	}{
		{"Consulting (day)", 1200},
		{"Support plan (month)", 450},
		{"Implementation package", 8500},
	}
	for _, p := range products {
		if err := exec(`INSERT INTO products (id, tenant_id, name, unit_price, currency, active) VALUES (?, ?, ?, ?, 'EUR', 1)`,
			"prd_"+uuid.New().String()[:12], tenantID, p.name, p.price); err != nil {
			return fmt.Errorf("seeding products: %w", err)
		}
	}

	tasks := []struct {
		title   string
		status  string
		dueDays int
	}{
		{"Send Q3 statements", "open", 3},
		{"Follow up Northwind overdue invoices", "open", 1},
		{"Archive 2024 contracts", "done", -30},
	}
	for _, tk := range tasks {
		if err := exec(`INSERT INTO tasks (id, tenant_id, title, status, assignee_id, due_at) VALUES (?, ?, ?, ?, ?, ?)`,
			"tsk_"+uuid.New().String()[:12], tenantID, tk.title, tk.status, userIDs[0], now.AddDate(0, 0, tk.dueDays)); err != nil {
			return fmt.Errorf("seeding tasks: %w", err)
		}
	}

	for d := 1; d <= 10; d++ {
		if err := exec(`INSERT INTO time_entries (id, tenant_id, user_id, project, hours, billable, entry_date)
			VALUES (?, ?, ?, ?, ?, 1, ?)`,
			"tme_"+uuid.New().String()[:12], tenantID, userIDs[d%2], "Acme rollout", 6.5, now.AddDate(0, 0, -d)); err != nil {
			return fmt.Errorf("seeding time entries: %w", err)
		}
	}

	txs := []struct {
		desc     string
		category string
		amount   float64
		daysAgo  int
	}{
		{"Acme GmbH payment", "sales", 2400, 80},
		{"Northwind retainer", "sales", 1800, 50},
		{"Office rent", "rent", -1500, 40},
		{"Cloud hosting", "software", -320, 25},
		{"Payroll", "salaries", -9800, 20},
		{"Conference tickets", "travel", -640, 10},
	}
	for _, tx := range txs {
		if err := exec(`INSERT INTO transactions (id, tenant_id, account, description, category, amount, currency, occurred_at)
			VALUES (?, ?, 'main', ?, ?, ?, 'EUR', ?)`,
			"txn_"+uuid.New().String()[:12], tenantID, tx.desc, tx.category, tx.amount, now.AddDate(0, 0, -tx.daysAgo)); err != nil {
			return fmt.Errorf("seeding transactions: %w", err)
		}
	}

	return nil
}
