package catalog

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

// repoPG serves one classifier table; the table name comes from the Kind
// constants, never from request input.
type repoPG struct {
	pool  *pgxpool.Pool
	table string
}

func NewRepoPG(pool *pgxpool.Pool, kind Kind) Repository {
	return &repoPG{pool: pool, table: kind.Table()}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const classifierCols = `id, name, description, slug, uid, active, study_ids, created_at, updated_at`

var sortColumns = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func idsToStrings(ids []oid.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToIDs(ss []string) []oid.ID {
	out := make([]oid.ID, len(ss))
	for i, s := range ss {
		out[i] = oid.ID(s)
	}
	return out
}

func scanClassifier(row pgx.Row) (*Classifier, error) {
	var cl Classifier
	var members []string
	err := row.Scan(&cl.ID, &cl.Name, &cl.Description, &cl.Slug, &cl.UID,
		&cl.Active, &members, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cl.StudyIDs = stringsToIDs(members)
	return &cl, nil
}

func (r *repoPG) Create(ctx context.Context, cl *Classifier) error {
	_, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, name, description, slug, uid, active, study_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.table),
		cl.ID, cl.Name, cl.Description, cl.Slug, cl.UID, cl.Active, idsToStrings(cl.StudyIDs))
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id oid.ID) (*Classifier, error) {
	return scanClassifier(r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, classifierCols, r.table), id))
}

func (r *repoPG) Update(ctx context.Context, cl *Classifier) error {
	_, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET name=$2, description=$3, slug=$4, uid=$5, active=$6,
			study_ids=$7, updated_at=NOW()
		WHERE id = $1`, r.table),
		cl.ID, cl.Name, cl.Description, cl.Slug, cl.UID, cl.Active, idsToStrings(cl.StudyIDs))
	return err
}

func (r *repoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Classifier, int, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, classifierCols, r.table)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE 1=1`, r.table)
	var args []interface{}
	idx := 1

	if f.Search != "" {
		cond := fmt.Sprintf(` AND (name ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')`, idx, idx)
		query += cond
		countQuery += cond
		args = append(args, f.Search)
		idx++
	}
	if f.Active != nil {
		cond := fmt.Sprintf(` AND active = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.Active)
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
	var items []*Classifier
	for rows.Next() {
		cl, err := scanClassifier(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cl)
	}
	return items, total, rows.Err()
}

func (r *repoPG) All(ctx context.Context) ([]*Classifier, error) {
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at ASC`, classifierCols, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Classifier
	for rows.Next() {
		cl, err := scanClassifier(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cl)
	}
	return items, rows.Err()
}

func (r *repoPG) ExistsByName(ctx context.Context, name string, exclude oid.ID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE lower(name) = lower($1) AND id <> $2
		)`, r.table), name, exclude).Scan(&exists)
	return exists, err
}

func (r *repoPG) AssignedStudyIDs(ctx context.Context) ([]oid.ID, error) {
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT unnest(study_ids) FROM %s`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []oid.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, oid.ID(id))
	}
	return ids, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var b0, b1, b2, b3 int
	err := r.conn(ctx).QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE active),
		       COUNT(*) FILTER (WHERE NOT active),
		       COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days'),
		       COUNT(*) FILTER (WHERE cardinality(study_ids) = 0),
		       COUNT(*) FILTER (WHERE cardinality(study_ids) BETWEEN 1 AND 5),
		       COUNT(*) FILTER (WHERE cardinality(study_ids) BETWEEN 6 AND 10),
		       COUNT(*) FILTER (WHERE cardinality(study_ids) > 10)
		FROM %s`, r.table)).
		Scan(&st.Total, &st.Active, &st.Inactive, &st.Recent, &b0, &b1, &b2, &b3)
	if err != nil {
		return nil, err
	}
	st.Distribution = []DistributionBucket{
		{Bucket: "0", Count: b0},
		{Bucket: "1-5", Count: b1},
		{Bucket: "6-10", Count: b2},
		{Bucket: ">10", Count: b3},
	}
	return &st, nil
}
