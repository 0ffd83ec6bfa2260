package intake

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
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

// =========== Excel File Repository ===========

type fileRepoPG struct{ pool *pgxpool.Pool }

func NewFileRepoPG(pool *pgxpool.Pool) FileRepository {
	return &fileRepoPG{pool: pool}
}

const fileCols = `id, name, path, uploaded_at, selected_columns, temporary, study_ids, created_at, updated_at`

func scanFile(row pgx.Row) (*ExcelFile, error) {
	var f ExcelFile
	var members []string
	err := row.Scan(&f.ID, &f.Name, &f.Path, &f.UploadedAt, &f.SelectedColumns,
		&f.Temporary, &members, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.StudyIDs = stringsToIDs(members)
	return &f, nil
}

func (r *fileRepoPG) Create(ctx context.Context, f *ExcelFile) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO excel_files (id, name, path, uploaded_at, selected_columns, temporary, study_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		f.ID, f.Name, f.Path, f.UploadedAt, f.SelectedColumns, f.Temporary, idsToStrings(f.StudyIDs))
	return err
}

func (r *fileRepoPG) GetByID(ctx context.Context, id oid.ID) (*ExcelFile, error) {
	return scanFile(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+fileCols+` FROM excel_files WHERE id = $1`, id))
}

func (r *fileRepoPG) Update(ctx context.Context, f *ExcelFile) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE excel_files SET name=$2, path=$3, selected_columns=$4, temporary=$5,
			study_ids=$6, updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.Name, f.Path, f.SelectedColumns, f.Temporary, idsToStrings(f.StudyIDs))
	return err
}

func (r *fileRepoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM excel_files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *fileRepoPG) List(ctx context.Context, f FileFilter, limit, offset int) ([]*ExcelFile, int, error) {
	query := `SELECT ` + fileCols + ` FROM excel_files WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM excel_files WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Search != "" {
		cond := ` AND name ILIKE '%' || $1 || '%'`
		query += cond
		countQuery += cond
		args = append(args, f.Search)
		idx++
	}
	if f.Temporary != nil {
		cond := fmt.Sprintf(` AND temporary = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.Temporary)
		idx++
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ExcelFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

// =========== Excel Row Repository ===========

type rowRepoPG struct{ pool *pgxpool.Pool }

func NewRowRepoPG(pool *pgxpool.Pool) RowRepository {
	return &rowRepoPG{pool: pool}
}

const rowCols = `id, file_id, payload, study_ids, sent, clinical_record_id, created_at, updated_at`

func scanRow(row pgx.Row) (*ExcelRow, error) {
	var r ExcelRow
	var members []string
	err := row.Scan(&r.ID, &r.FileID, &r.Payload, &members, &r.Sent,
		&r.ClinicalRecordID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.StudyIDs = stringsToIDs(members)
	return &r, nil
}

func (r *rowRepoPG) Create(ctx context.Context, row *ExcelRow) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO excel_rows (id, file_id, payload, study_ids, sent, clinical_record_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		row.ID, row.FileID, row.Payload, idsToStrings(row.StudyIDs), row.Sent, row.ClinicalRecordID)
	return err
}

func (r *rowRepoPG) GetByID(ctx context.Context, id oid.ID) (*ExcelRow, error) {
	return scanRow(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+rowCols+` FROM excel_rows WHERE id = $1`, id))
}

func (r *rowRepoPG) Update(ctx context.Context, row *ExcelRow) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE excel_rows SET payload=$2, study_ids=$3, sent=$4,
			clinical_record_id=$5, updated_at=NOW()
		WHERE id = $1`,
		row.ID, row.Payload, idsToStrings(row.StudyIDs), row.Sent, row.ClinicalRecordID)
	return err
}

func (r *rowRepoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM excel_rows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *rowRepoPG) ListByFile(ctx context.Context, fileID oid.ID, limit, offset int) ([]*ExcelRow, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM excel_rows WHERE file_id = $1`, fileID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+rowCols+` FROM excel_rows WHERE file_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		fileID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ExcelRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, row)
	}
	return items, total, rows.Err()
}

func (r *rowRepoPG) DeleteByFile(ctx context.Context, fileID oid.ID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM excel_rows WHERE file_id = $1`, fileID)
	return err
}

// =========== Form Submission Repository ===========

type submissionRepoPG struct{ pool *pgxpool.Pool }

func NewSubmissionRepoPG(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepoPG{pool: pool}
}

const submissionCols = `id, form_name, payload, submitted_at`

func scanSubmission(row pgx.Row) (*FormSubmission, error) {
	var s FormSubmission
	err := row.Scan(&s.ID, &s.FormName, &s.Payload, &s.SubmittedAt)
	return &s, err
}

func (r *submissionRepoPG) Create(ctx context.Context, s *FormSubmission) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO form_submissions (id, form_name, payload, submitted_at)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.FormName, s.Payload, s.SubmittedAt)
	return err
}

func (r *submissionRepoPG) GetByID(ctx context.Context, id oid.ID) (*FormSubmission, error) {
	return scanSubmission(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+submissionCols+` FROM form_submissions WHERE id = $1`, id))
}

func (r *submissionRepoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM form_submissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *submissionRepoPG) List(ctx context.Context, limit, offset int) ([]*FormSubmission, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM form_submissions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+submissionCols+` FROM form_submissions ORDER BY submitted_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*FormSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Stage Repository ===========

type stageRepoPG struct{ pool *pgxpool.Pool }

func NewStageRepoPG(pool *pgxpool.Pool) StageRepository {
	return &stageRepoPG{pool: pool}
}

const stageCols = `id, name, position, active, created_at`

func scanStage(row pgx.Row) (*Stage, error) {
	var s Stage
	err := row.Scan(&s.ID, &s.Name, &s.Order, &s.Active, &s.CreatedAt)
	return &s, err
}

func (r *stageRepoPG) Create(ctx context.Context, s *Stage) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stages (id, name, position, active)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.Name, s.Order, s.Active)
	return err
}

func (r *stageRepoPG) GetByID(ctx context.Context, id oid.ID) (*Stage, error) {
	return scanStage(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+stageCols+` FROM stages WHERE id = $1`, id))
}

func (r *stageRepoPG) Update(ctx context.Context, s *Stage) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE stages SET name=$2, position=$3, active=$4 WHERE id = $1`,
		s.ID, s.Name, s.Order, s.Active)
	return err
}

func (r *stageRepoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM stages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *stageRepoPG) ListOrdered(ctx context.Context) ([]*Stage, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+stageCols+` FROM stages ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// =========== Migration Log Repository ===========

type logRepoPG struct{ pool *pgxpool.Pool }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository {
	return &logRepoPG{pool: pool}
}

func (r *logRepoPG) Append(ctx context.Context, l *MigrationLog) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO page_migration_logs (id, page, action, detail, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.Page, l.Action, l.Detail, l.CreatedAt)
	return err
}

func (r *logRepoPG) List(ctx context.Context, limit, offset int) ([]*MigrationLog, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM page_migration_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, page, action, detail, created_at
		FROM page_migration_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MigrationLog
	for rows.Next() {
		var l MigrationLog
		if err := rows.Scan(&l.ID, &l.Page, &l.Action, &l.Detail, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &l)
	}
	return items, total, rows.Err()
}
