package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is a member of a tenant who can act on records (e.g. issue invoices).
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Customer is a company or person the tenant bills.
type Customer struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// Invoice is a billing document; CustomerName is joined for display.
type Invoice struct {
	ID           string     `json:"id"`
	Number       string     `json:"number"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Status       string     `json:"status"`
	Currency     string     `json:"currency"`
	Amount       float64    `json:"amount"`
	IssuedAt     time.Time  `json:"issued_at"`
	DueAt        time.Time  `json:"due_at"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

// Payment is money received against an invoice.
type Payment struct {
	ID            string    `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Product is a billable item in the catalog.
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Currency  string  `json:"currency"`
	Active    bool    `json:"active"`
}

// Task is an operations work item.
type Task struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	Assignee string     `json:"assignee"`
	DueAt    *time.Time `json:"due_at,omitempty"`
}

// TimeEntry is a logged unit of work.
type TimeEntry struct {
	ID       string    `json:"id"`
	UserName string    `json:"user_name"`
	Project  string    `json:"project"`
	Hours    float64   `json:"hours"`
	Billable bool      `json:"billable"`
	Date     time.Time `json:"date"`
}

// Transaction is a bank/ledger movement; negative amounts are expenses.
type Transaction struct {
	ID          string    `json:"id"`
	Account     string    `json:"account"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// InvoiceSummary aggregates invoice state for a tenant.
type InvoiceSummary struct {
	CountByStatus    map[string]int `json:"count_by_status"`
	TotalOutstanding float64        `json:"total_outstanding"`
	TotalPaid        float64        `json:"total_paid"`
}

// MonthAmount is one month's aggregate (revenue, cash flow).
type MonthAmount struct {
	Month  string  `json:"month"` // "2026-08"
	Amount float64 `json:"amount"`
}

// CustomerRevenue pairs a customer with their paid total.
type CustomerRevenue struct {
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
}

// CategoryAmount pairs an expense category with its spend total.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// ProfitSummary nets income against expenses over a period.
type ProfitSummary struct {
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// Overview is a company-wide snapshot used by the research tools.
type Overview struct {
	Customers    int     `json:"customers"`
	OpenInvoices int     `json:"open_invoices"`
	Outstanding  float64 `json:"outstanding"`
	RevenueYTD   float64 `json:"revenue_ytd"`
	OpenTasks    int     `json:"open_tasks"`
}

const invoiceSelect = `
SELECT i.id, i.number, i.customer_id, COALESCE(c.name, ''), i.status, i.currency,
       i.amount, i.issued_at, i.due_at, i.paid_at
FROM invoices i LEFT JOIN customers c ON c.id = i.customer_id AND c.tenant_id = i.tenant_id`

func scanInvoices(rows *sql.Rows) ([]Invoice, error) {
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		var paidAt sql.NullTime
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName,
			&inv.Status, &inv.Currency, &inv.Amount, &inv.IssuedAt, &inv.DueAt, &paidAt); err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		if paidAt.Valid {
			t := paidAt.Time
			inv.PaidAt = &t
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInvoices returns the tenant's invoices, optionally filtered by status,
// newest first.
func (s *Store) ListInvoices(ctx context.Context, tenantID, status string, limit int) ([]Invoice, error) {
	q := invoiceSelect + ` WHERE i.tenant_id = ?`
	args := []interface{}{tenantID}
	if status != "" {
		q += ` AND i.status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY i.issued_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// OverdueInvoices returns unpaid invoices whose due date is before asOf,
// most overdue first.
func (s *Store) OverdueInvoices(ctx context.Context, tenantID string, asOf time.Time) ([]Invoice, error) {
	q := invoiceSelect + `
WHERE i.tenant_id = ? AND i.paid_at IS NULL AND i.status != 'draft' AND i.due_at < ?
ORDER BY i.due_at ASC`
	rows, err := s.db.QueryContext(ctx, q, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("listing overdue invoices: %w", err)
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// InvoiceTotals returns per-status counts and outstanding/paid totals.
func (s *Store) InvoiceTotals(ctx context.Context, tenantID string) (*InvoiceSummary, error) {
	sum := &InvoiceSummary{CountByStatus: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM invoices WHERE tenant_id = ? GROUP BY status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("summarizing invoices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning invoice summary: %w", err)
		}
		sum.CountByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN paid_at IS NULL AND status != 'draft' THEN amount ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN paid_at IS NOT NULL THEN amount ELSE 0 END), 0)
		 FROM invoices WHERE tenant_id = ?`, tenantID).
		Scan(&sum.TotalOutstanding, &sum.TotalPaid)
	if err != nil {
		return nil, fmt.Errorf("summarizing invoice totals: %w", err)
	}
	return sum, nil
}

// ListCustomers returns the tenant's customers, newest first.
func (s *Store) ListCustomers(ctx context.Context, tenantID string, limit int) ([]Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, email, country, created_at
		 FROM customers WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Country, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindCustomersByName does a case-insensitive substring match on customer name.
// Used by the write tools for disambiguation: callers must check the result
// count before acting on it.
func (s *Store) FindCustomersByName(ctx context.Context, tenantID, name string) ([]Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, email, country, created_at
		 FROM customers WHERE tenant_id = ? AND name LIKE '%' || ? || '%' COLLATE NOCASE
		 ORDER BY name ASC LIMIT 20`, tenantID, name)
	if err != nil {
		return nil, fmt.Errorf("finding customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Country, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FirstUser returns the tenant's longest-standing user, used as the acting
// user for write tools when the request names no actor.
func (s *Store) FirstUser(ctx context.Context, tenantID string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, full_name, email FROM users
		 WHERE tenant_id = ? ORDER BY created_at ASC LIMIT 1`, tenantID).
		Scan(&u.ID, &u.TenantID, &u.FullName, &u.Email)
	if err == sql.ErrNoRows {
		return nil, ErrNoUsers
	}
	if err != nil {
		return nil, fmt.Errorf("selecting first user: %w", err)
	}
	return &u, nil
}

// RevenueByMonth aggregates received payments per calendar month over the
// last `months` months ending at asOf.
func (s *Store) RevenueByMonth(ctx context.Context, tenantID string, months int, asOf time.Time) ([]MonthAmount, error) {
	from := asOf.AddDate(0, -months, 0)
	rows, err := s.db.QueryContext(ctx,
		`SELECT strftime('%Y-%m', received_at), COALESCE(SUM(amount), 0)
		 FROM payments WHERE tenant_id = ? AND received_at >= ? AND received_at <= ?
		 GROUP BY 1 ORDER BY 1 ASC`, tenantID, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("aggregating revenue: %w", err)
	}
	defer rows.Close()
	return scanMonthAmounts(rows)
}

// TopCustomers ranks customers by paid invoice volume.
func (s *Store) TopCustomers(ctx context.Context, tenantID string, limit int) ([]CustomerRevenue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(c.name, i.customer_id), COALESCE(SUM(p.amount), 0) AS revenue
		 FROM payments p
		 JOIN invoices i ON i.id = p.invoice_id AND i.tenant_id = p.tenant_id
		 LEFT JOIN customers c ON c.id = i.customer_id AND c.tenant_id = i.tenant_id
		 WHERE p.tenant_id = ?
		 GROUP BY 1 ORDER BY revenue DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("ranking customers: %w", err)
	}
	defer rows.Close()
	var out []CustomerRevenue
	for rows.Next() {
		var cr CustomerRevenue
		if err := rows.Scan(&cr.Name, &cr.Revenue); err != nil {
			return nil, fmt.Errorf("scanning customer revenue: %w", err)
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// ProfitBetween nets transaction income against expenses in [from, to].
func (s *Store) ProfitBetween(ctx context.Context, tenantID string, from, to time.Time) (*ProfitSummary, error) {
	var p ProfitSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0)
		 FROM transactions WHERE tenant_id = ? AND occurred_at >= ? AND occurred_at <= ?`,
		tenantID, from, to).Scan(&p.Income, &p.Expenses)
	if err != nil {
		return nil, fmt.Errorf("aggregating profit: %w", err)
	}
	p.Net = p.Income - p.Expenses
	return &p, nil
}

// CashFlowByMonth aggregates net transaction flow per month.
func (s *Store) CashFlowByMonth(ctx context.Context, tenantID string, months int, asOf time.Time) ([]MonthAmount, error) {
	from := asOf.AddDate(0, -months, 0)
	rows, err := s.db.QueryContext(ctx,
		`SELECT strftime('%Y-%m', occurred_at), COALESCE(SUM(amount), 0)
		 FROM transactions WHERE tenant_id = ? AND occurred_at >= ? AND occurred_at <= ?
		 GROUP BY 1 ORDER BY 1 ASC`, tenantID, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("aggregating cash flow: %w", err)
	}
	defer rows.Close()
	return scanMonthAmounts(rows)
}

// ExpensesByCategory totals negative transactions per category, largest first.
func (s *Store) ExpensesByCategory(ctx context.Context, tenantID string, from, to time.Time) ([]CategoryAmount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COALESCE(SUM(-amount), 0) AS spend
		 FROM transactions
		 WHERE tenant_id = ? AND amount < 0 AND occurred_at >= ? AND occurred_at <= ?
		 GROUP BY category ORDER BY spend DESC`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregating expenses: %w", err)
	}
	defer rows.Close()
	var out []CategoryAmount
	for rows.Next() {
		var ca CategoryAmount
		if err := rows.Scan(&ca.Category, &ca.Amount); err != nil {
			return nil, fmt.Errorf("scanning expense category: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// ListTasks returns tasks, optionally filtered by status, soonest due first.
func (s *Store) ListTasks(ctx context.Context, tenantID, status string, limit int) ([]Task, error) {
	q := `SELECT t.id, t.title, t.status, COALESCE(u.full_name, ''), t.due_at
	      FROM tasks t LEFT JOIN users u ON u.id = t.assignee_id AND u.tenant_id = t.tenant_id
	      WHERE t.tenant_id = ?`
	args := []interface{}{tenantID}
	if status != "" {
		q += ` AND t.status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY t.due_at IS NULL, t.due_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.Assignee, &due); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		if due.Valid {
			d := due.Time
			t.DueAt = &d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListProducts returns the active product catalog.
func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, unit_price, currency, active FROM products
		 WHERE tenant_id = ? AND active = 1 ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Currency, &p.Active); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTimeEntries returns logged work in [from, to], newest first.
func (s *Store) ListTimeEntries(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, COALESCE(u.full_name, e.user_id), e.project, e.hours, e.billable, e.entry_date
		 FROM time_entries e LEFT JOIN users u ON u.id = e.user_id AND u.tenant_id = e.tenant_id
		 WHERE e.tenant_id = ? AND e.entry_date >= ? AND e.entry_date <= ?
		 ORDER BY e.entry_date DESC LIMIT ?`, tenantID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("listing time entries: %w", err)
	}
	defer rows.Close()
	var out []TimeEntry
	for rows.Next() {
		var e TimeEntry
		if err := rows.Scan(&e.ID, &e.UserName, &e.Project, &e.Hours, &e.Billable, &e.Date); err != nil {
			return nil, fmt.Errorf("scanning time entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HoursByProject totals logged hours per project in [from, to].
func (s *Store) HoursByProject(ctx context.Context, tenantID string, from, to time.Time) ([]CategoryAmount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project, COALESCE(SUM(hours), 0) AS total
		 FROM time_entries WHERE tenant_id = ? AND entry_date >= ? AND entry_date <= ?
		 GROUP BY project ORDER BY total DESC`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregating hours: %w", err)
	}
	defer rows.Close()
	var out []CategoryAmount
	for rows.Next() {
		var ca CategoryAmount
		if err := rows.Scan(&ca.Category, &ca.Amount); err != nil {
			return nil, fmt.Errorf("scanning project hours: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// ListTransactions returns ledger movements, optionally filtered by category,
// newest first.
func (s *Store) ListTransactions(ctx context.Context, tenantID, category string, limit int) ([]Transaction, error) {
	q := `SELECT id, account, description, category, amount, currency, occurred_at
	      FROM transactions WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Account, &tx.Description, &tx.Category,
			&tx.Amount, &tx.Currency, &tx.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ListPayments returns received payments, newest first.
func (s *Store) ListPayments(ctx context.Context, tenantID string, limit int) ([]Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, COALESCE(i.number, p.invoice_id), p.amount, p.currency, p.received_at
		 FROM payments p LEFT JOIN invoices i ON i.id = p.invoice_id AND i.tenant_id = p.tenant_id
		 WHERE p.tenant_id = ? ORDER BY p.received_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceNumber, &p.Amount, &p.Currency, &p.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CompanyOverview snapshots headline figures for the tenant.
func (s *Store) CompanyOverview(ctx context.Context, tenantID string, asOf time.Time) (*Overview, error) {
	o := &Overview{}
	yearStart := time.Date(asOf.Year(), 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE tenant_id = ?`, tenantID).Scan(&o.Customers)
	if err != nil {
		return nil, fmt.Errorf("counting customers: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM invoices
		 WHERE tenant_id = ? AND paid_at IS NULL AND status != 'draft'`, tenantID).
		Scan(&o.OpenInvoices, &o.Outstanding)
	if err != nil {
		return nil, fmt.Errorf("counting open invoices: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments
		 WHERE tenant_id = ? AND received_at >= ?`, tenantID, yearStart).Scan(&o.RevenueYTD)
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE tenant_id = ? AND status = 'open'`, tenantID).Scan(&o.OpenTasks)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}
	return o, nil
}

func scanMonthAmounts(rows *sql.Rows) ([]MonthAmount, error) {
	var out []MonthAmount
	for rows.Next() {
		var ma MonthAmount
		if err := rows.Scan(&ma.Month, &ma.Amount); err != nil {
			return nil, fmt.Errorf("scanning month amount: %w", err)
		}
		out = append(out, ma)
	}
	return out, rows.Err()
}
