package patient

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, patient_number, first_name, last_name, date_of_birth,
	gender, phone, address, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientNumber, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Gender, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, patient_number, first_name, last_name, date_of_birth,
			gender, phone, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.PatientNumber, p.FirstName, p.LastName, p.DateOfBirth,
		p.Gender, p.Phone, p.Address)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_number = $1`, number))
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	where := `WHERE ($1 = '' OR first_name ILIKE '%' || $1 || '%'
		OR last_name ILIKE '%' || $1 || '%'
		OR patient_number ILIKE '%' || $1 || '%')`

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients `+where, query).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients `+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, date_of_birth=$4,
			gender=$5, phone=$6, address=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.Phone, p.Address)
	return err
}

func (r *repoPG) CountCreatedToday(ctx context.Context) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE created_at::date = CURRENT_DATE`).Scan(&count)
	return count, err
}

// =========== Insurance Repository ===========

type insuranceRepoPG struct{ pool *pgxpool.Pool }

func NewInsuranceRepoPG(pool *pgxpool.Pool) InsuranceRepository {
	return &insuranceRepoPG{pool: pool}
}

func (r *insuranceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const insuranceCols = `id, patient_id, company_id, policy_number, coverage_amount,
	is_active, created_at, updated_at`

func scanInsurance(row pgx.Row) (*Insurance, error) {
	var ins Insurance
	err := row.Scan(&ins.ID, &ins.PatientID, &ins.CompanyID, &ins.PolicyNumber,
		&ins.CoverageAmount, &ins.IsActive, &ins.CreatedAt, &ins.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ins, err
}

func (r *insuranceRepoPG) Create(ctx context.Context, ins *Insurance) error {
	ins.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO insurances (id, patient_id, company_id, policy_number, coverage_amount, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ins.ID, ins.PatientID, ins.CompanyID, ins.PolicyNumber, ins.CoverageAmount, ins.IsActive)
	return err
}

func (r *insuranceRepoPG) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Insurance, error) {
	return scanInsurance(r.conn(ctx).QueryRow(ctx, `
		SELECT `+insuranceCols+` FROM insurances
		WHERE patient_id = $1 AND is_active
		ORDER BY created_at DESC LIMIT 1`, patientID))
}

func (r *insuranceRepoPG) Update(ctx context.Context, ins *Insurance) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE insurances SET company_id=$2, policy_number=$3, coverage_amount=$4,
			is_active=$5, updated_at=NOW()
		WHERE id = $1`,
		ins.ID, ins.CompanyID, ins.PolicyNumber, ins.CoverageAmount, ins.IsActive)
	return err
}
