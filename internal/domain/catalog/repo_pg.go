package catalog

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

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `id, name, description, item_type, price, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.ItemType, &it.Price,
		&it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &it, err
}

func (r *itemRepoPG) Create(ctx context.Context, item *Item) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO catalog_items (id, name, description, item_type, price, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.Name, item.Description, item.ItemType, item.Price, item.IsActive)
	return err
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM catalog_items WHERE id = $1`, id))
}

func (r *itemRepoPG) GetByName(ctx context.Context, name string) (*Item, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM catalog_items WHERE LOWER(name) = LOWER($1)`, name))
}

func (r *itemRepoPG) List(ctx context.Context, itemType string, activeOnly bool, limit, offset int) ([]*Item, int, error) {
	where := `WHERE ($1 = '' OR item_type = $1) AND (NOT $2 OR is_active)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM catalog_items `+where, itemType, activeOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM catalog_items `+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		itemType, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, nil
}

func (r *itemRepoPG) Update(ctx context.Context, item *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE catalog_items SET name=$2, description=$3, item_type=$4, price=$5,
			is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		item.ID, item.Name, item.Description, item.ItemType, item.Price, item.IsActive)
	return err
}

func (r *itemRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE catalog_items SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== InsuranceCompany Repository ===========

type companyRepoPG struct{ pool *pgxpool.Pool }

func NewCompanyRepoPG(pool *pgxpool.Pool) CompanyRepository { return &companyRepoPG{pool: pool} }

func (r *companyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const companyCols = `id, name, contact_email, contact_phone, address, is_active, created_at, updated_at`

func scanCompany(row pgx.Row) (*InsuranceCompany, error) {
	var co InsuranceCompany
	err := row.Scan(&co.ID, &co.Name, &co.ContactEmail, &co.ContactPhone, &co.Address,
		&co.IsActive, &co.CreatedAt, &co.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &co, err
}

func (r *companyRepoPG) Create(ctx context.Context, co *InsuranceCompany) error {
	co.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO insurance_companies (id, name, contact_email, contact_phone, address, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		co.ID, co.Name, co.ContactEmail, co.ContactPhone, co.Address, co.IsActive)
	return err
}

func (r *companyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InsuranceCompany, error) {
	return scanCompany(r.conn(ctx).QueryRow(ctx,
		`SELECT `+companyCols+` FROM insurance_companies WHERE id = $1`, id))
}

func (r *companyRepoPG) List(ctx context.Context, limit, offset int) ([]*InsuranceCompany, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM insurance_companies`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+companyCols+` FROM insurance_companies ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*InsuranceCompany
	for rows.Next() {
		co, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, co)
	}
	return items, total, nil
}

func (r *companyRepoPG) Update(ctx context.Context, co *InsuranceCompany) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE insurance_companies SET name=$2, contact_email=$3, contact_phone=$4,
			address=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		co.ID, co.Name, co.ContactEmail, co.ContactPhone, co.Address, co.IsActive)
	return err
}

func (r *companyRepoPG) AttachItem(ctx context.Context, companyID, itemID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO catalog_item_insurers (company_id, item_id)
		VALUES ($1, $2)
		ON CONFLICT (company_id, item_id) DO NOTHING`, companyID, itemID)
	return err
}

func (r *companyRepoPG) DetachItem(ctx context.Context, companyID, itemID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM catalog_item_insurers WHERE company_id = $1 AND item_id = $2`, companyID, itemID)
	return err
}

func (r *companyRepoPG) ListItems(ctx context.Context, companyID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT i.id, i.name, i.description, i.item_type, i.price, i.is_active, i.created_at, i.updated_at
		FROM catalog_items i
		JOIN catalog_item_insurers ci ON ci.item_id = i.id
		WHERE ci.company_id = $1
		ORDER BY i.name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}
