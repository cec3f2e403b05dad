package visit

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

// =========== Visit Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const visitCols = `id, visit_number, patient_id, department, status, is_active, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.VisitNumber, &v.PatientID, &v.Department, &v.Status,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &v, err
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visits (id, visit_number, patient_id, department, status, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		v.ID, v.VisitNumber, v.PatientID, v.Department, v.Status, v.IsActive)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Visit, int, error) {
	where := `WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR patient_id = $1)
		AND (NOT $2 OR is_active)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visits `+where, patientID, activeOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		patientID, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, v *Visit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE visits SET department=$2, status=$3, is_active=$4, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.Department, v.Status, v.IsActive)
	return err
}

func (r *repoPG) HasActiveSameDay(ctx context.Context, patientID uuid.UUID, department string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM visits
			WHERE patient_id = $1 AND department = $2 AND is_active
				AND created_at::date = CURRENT_DATE
		)`, patientID, department).Scan(&exists)
	return exists, err
}

func (r *repoPG) CountCreatedToday(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visits WHERE created_at::date = CURRENT_DATE`).Scan(&count)
	return count, err
}

// =========== Test Repository ===========

type testRepoPG struct{ pool *pgxpool.Pool }

func NewTestRepoPG(pool *pgxpool.Pool) TestRepository { return &testRepoPG{pool: pool} }

func (r *testRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const testCols = `id, visit_id, item_id, name, test_type, price, status, created_at, updated_at`

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.VisitID, &t.ItemID, &t.Name, &t.TestType, &t.Price,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *testRepoPG) Create(ctx context.Context, t *Test) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO tests (id, visit_id, item_id, name, test_type, price, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.VisitID, t.ItemID, t.Name, t.TestType, t.Price, t.Status)
	return err
}

func (r *testRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM tests WHERE id = $1`, id))
}

func (r *testRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Test, error) {
	return r.list(ctx, `SELECT `+testCols+` FROM tests WHERE visit_id = $1 ORDER BY created_at`, visitID)
}

func (r *testRepoPG) ListByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status string) ([]*Test, error) {
	return r.list(ctx,
		`SELECT `+testCols+` FROM tests WHERE visit_id = $1 AND status = $2 ORDER BY created_at`,
		visitID, status)
}

func (r *testRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Test, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

func (r *testRepoPG) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE tests SET status = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, status)
	return err
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const prescriptionCols = `id, visit_id, item_id, medicine_name, dosage, quantity, frequency,
	price, status, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.VisitID, &p.ItemID, &p.MedicineName, &p.Dosage, &p.Quantity,
		&p.Frequency, &p.Price, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (id, visit_id, item_id, medicine_name, dosage, quantity,
			frequency, price, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.VisitID, p.ItemID, p.MedicineName, p.Dosage, p.Quantity,
		p.Frequency, p.Price, p.Status)
	return err
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	return r.list(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE visit_id = $1 ORDER BY created_at`, visitID)
}

func (r *prescriptionRepoPG) ListByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status string) ([]*Prescription, error) {
	return r.list(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE visit_id = $1 AND status = $2 ORDER BY created_at`,
		visitID, status)
}

func (r *prescriptionRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET status = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, status)
	return err
}
