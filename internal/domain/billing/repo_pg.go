package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const paymentCols = `id, visit_id, amount, status, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.VisitID, &p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, visit_id, amount, status)
		VALUES ($1,$2,$3,$4)`,
		p.ID, p.VisitID, p.Amount, p.Status)
	return err
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
}

func (r *paymentRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1 FOR UPDATE`, id))
}

func (r *paymentRepoPG) GetPendingByVisitForUpdate(ctx context.Context, visitID uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+paymentCols+` FROM payments
		WHERE visit_id = $1 AND status = 'pending'
		ORDER BY created_at LIMIT 1
		FOR UPDATE`, visitID))
}

func (r *paymentRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *paymentRepoPG) Update(ctx context.Context, p *Payment) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE payments SET amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Amount, p.Status)
	return err
}

const paymentItemCols = `id, payment_id, item_id, description, item_kind, price, status, created_at`

func scanPaymentItem(row pgx.Row) (*PaymentItem, error) {
	var it PaymentItem
	err := row.Scan(&it.ID, &it.PaymentID, &it.ItemID, &it.Description, &it.ItemKind,
		&it.Price, &it.Status, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &it, err
}

func (r *paymentRepoPG) AddItem(ctx context.Context, item *PaymentItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment_items (id, payment_id, item_id, description, item_kind, price, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.PaymentID, item.ItemID, item.Description, item.ItemKind, item.Price, item.Status)
	return err
}

func (r *paymentRepoPG) GetItems(ctx context.Context, paymentID uuid.UUID) ([]*PaymentItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+paymentItemCols+` FROM payment_items WHERE payment_id = $1 ORDER BY created_at`,
		paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PaymentItem
	for rows.Next() {
		it, err := scanPaymentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (r *paymentRepoPG) HasItemForCatalogItem(ctx context.Context, paymentID, catalogItemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_items WHERE payment_id = $1 AND item_id = $2
		)`, paymentID, catalogItemID).Scan(&exists)
	return exists, err
}

func (r *paymentRepoPG) MarkItemsCompleted(ctx context.Context, paymentID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment_items SET status = 'completed'
		WHERE payment_id = $1 AND id = ANY($2) AND status = 'pending'`,
		paymentID, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *paymentRepoPG) CountPendingItems(ctx context.Context, paymentID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payment_items WHERE payment_id = $1 AND status = 'pending'`,
		paymentID).Scan(&count)
	return count, err
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, visit_id, total_amount, is_paid, is_insurance, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.VisitID, &inv.TotalAmount, &inv.IsPaid, &inv.IsInsurance,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &inv, err
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (id, visit_id, total_amount, is_paid, is_insurance)
		VALUES ($1,$2,$3,$4,$5)`,
		inv.ID, inv.VisitID, inv.TotalAmount, inv.IsPaid, inv.IsInsurance)
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) GetInsuranceByVisitForUpdate(ctx context.Context, visitID uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `
		SELECT `+invoiceCols+` FROM invoices
		WHERE visit_id = $1 AND is_insurance
		FOR UPDATE`, visitID))
}

func (r *invoiceRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	return r.list(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE visit_id = $1 ORDER BY created_at`, visitID)
}

func (r *invoiceRepoPG) ListUnpaidInsuranceByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	return r.list(ctx, `
		SELECT `+invoiceCols+` FROM invoices
		WHERE visit_id = $1 AND is_insurance AND NOT is_paid
		ORDER BY created_at
		FOR UPDATE`, visitID)
}

func (r *invoiceRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE invoices SET total_amount = $2, is_paid = $3, updated_at = NOW() WHERE id = $1`,
		inv.ID, inv.TotalAmount, inv.IsPaid)
	return err
}

const invoiceItemCols = `id, invoice_id, item_id, description, item_kind, price, created_at`

func scanInvoiceItem(row pgx.Row) (*InvoiceItem, error) {
	var it InvoiceItem
	err := row.Scan(&it.ID, &it.InvoiceID, &it.ItemID, &it.Description, &it.ItemKind,
		&it.Price, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &it, err
}

func (r *invoiceRepoPG) AddItem(ctx context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, item_id, description, item_kind, price)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.InvoiceID, item.ItemID, item.Description, item.ItemKind, item.Price)
	return err
}

func (r *invoiceRepoPG) GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceItemCols+` FROM invoice_items WHERE invoice_id = $1 ORDER BY created_at`,
		invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InvoiceItem
	for rows.Next() {
		it, err := scanInvoiceItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (r *invoiceRepoPG) HasItemForCatalogItem(ctx context.Context, invoiceID, catalogItemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoice_items WHERE invoice_id = $1 AND item_id = $2
		)`, invoiceID, catalogItemID).Scan(&exists)
	return exists, err
}
