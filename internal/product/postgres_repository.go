package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNoFields = errors.New("no fields to update")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type RecordRepository interface {
	Create(ctx context.Context, rec NewRecord) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	Update(ctx context.Context, id int64, in RecordInput) (Record, error)
	Delete(ctx context.Context, id int64) (Record, error)
}

const selectRecord = `SELECT id, name, price, category, in_stock, created_at FROM products`

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		inStock int16
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Price, &rec.Category, &inStock, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.InStock = inStock != 0
	return rec, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec NewRecord) (Record, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, price, category, in_stock)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.Name, rec.Price, rec.Category, boolToSmallint(rec.InStock)).Scan(&id)
	if err != nil {
		return Record{}, err
	}
	return r.Get(ctx, id)
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(selectRecord + ` WHERE 1=1`)

	if f.Category != "" {
		args = append(args, f.Category)
		fmt.Fprintf(&query, ` AND category = $%d`, len(args))
	}
	if f.InStock != nil {
		args = append(args, boolToSmallint(*f.InStock))
		fmt.Fprintf(&query, ` AND in_stock = $%d`, len(args))
	}
	query.WriteString(` ORDER BY created_at DESC`)

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, selectRecord+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Update writes only the fields present in the input. The existence check
// and the UPDATE are separate statements; a concurrent delete in between
// surfaces as ErrNotFound from the final read.
func (r *PostgresRepository) Update(ctx context.Context, id int64, in RecordInput) (Record, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return Record{}, err
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if in.Name.Set {
		add("name", in.Name.Value)
	}
	if in.Price.Set {
		add("price", in.Price.Value)
	}
	if in.Category.Set {
		add("category", in.Category.Value)
	}
	if in.InStock.Set {
		add("in_stock", boolToSmallint(in.InStock.present() && *in.InStock.Value))
	}
	if len(sets) == 0 {
		return Record{}, ErrNoFields
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return Record{}, err
	}
	return r.Get(ctx, id)
}

// Delete returns the row as it was before removal.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (Record, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return Record{}, err
	}
	return rec, nil
}
