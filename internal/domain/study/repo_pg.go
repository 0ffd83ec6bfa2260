package study

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialdesk/trialdesk/internal/platform/db"
	"github.com/trialdesk/trialdesk/pkg/oid"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const studyCols = `id, name, protocol_number, title, start_date, end_date, created_at, updated_at`

var sortColumns = map[string]string{
	"name":            "name",
	"protocol_number": "protocol_number",
	"created_at":      "created_at",
	"start_date":      "start_date",
}

func scanStudy(row pgx.Row) (*Study, error) {
	var s Study
	err := row.Scan(&s.ID, &s.Name, &s.ProtocolNumber, &s.Title,
		&s.StartDate, &s.EndDate, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Study) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO studies (id, name, protocol_number, title, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.Name, s.ProtocolNumber, s.Title, s.StartDate, s.EndDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id oid.ID) (*Study, error) {
	return scanStudy(r.conn(ctx).QueryRow(ctx, `SELECT `+studyCols+` FROM studies WHERE id = $1`, id))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []oid.ID) ([]*Study, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+studyCols+` FROM studies WHERE id = ANY($1) ORDER BY created_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Study
	for rows.Next() {
		s, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, s *Study) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE studies SET name=$2, protocol_number=$3, title=$4,
			start_date=$5, end_date=$6, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.ProtocolNumber, s.Title, s.StartDate, s.EndDate)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM studies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Study, int, error) {
	query := `SELECT ` + studyCols + ` FROM studies WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM studies WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Search != "" {
		cond := fmt.Sprintf(` AND (name ILIKE '%%' || $%d || '%%' OR protocol_number ILIKE '%%' || $%d || '%%')`, idx, idx)
		query += cond
		countQuery += cond
		args = append(args, f.Search)
		idx++
	}
	if f.CreatedFrom != nil {
		cond := fmt.Sprintf(` AND created_at >= $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.CreatedFrom)
		idx++
	}
	if f.CreatedTo != nil {
		cond := fmt.Sprintf(` AND created_at <= $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.CreatedTo)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy, ok := sortColumns[f.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	dir := "DESC"
	if f.SortDir == "asc" {
		dir = "ASC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s LIMIT $%d OFFSET $%d`, sortBy, dir, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Study
	for rows.Next() {
		s, err := scanStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) All(ctx context.Context) ([]*Study, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+studyCols+` FROM studies ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Study
	for rows.Next() {
		s, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) ExistingIDs(ctx context.Context, ids []oid.ID) (map[oid.ID]bool, error) {
	found := make(map[oid.ID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM studies WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id oid.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (r *repoPG) ExistsByProtocol(ctx context.Context, protocol string, exclude oid.ID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM studies
			WHERE lower(protocol_number) = lower($1) AND id <> $2
		)`, protocol, exclude).Scan(&exists)
	return exists, err
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days'),
		       COUNT(*) FILTER (WHERE protocol_number IS NOT NULL),
		       COUNT(*) FILTER (WHERE protocol_number IS NULL)
		FROM studies`).Scan(&st.Total, &st.Recent, &st.WithProtocol, &st.WithoutProtocol)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
