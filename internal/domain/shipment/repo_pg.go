package shipment

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

const ackCols = `id, shipment_id, study_id, drug_group, drug, excel_row_id,
	qty_acknowledged, qty_received, qty_missing, qty_damaged, status,
	acknowledged_at, created_at, updated_at`

func scanAck(row pgx.Row) (*Acknowledgment, error) {
	var a Acknowledgment
	err := row.Scan(&a.ID, &a.ShipmentID, &a.StudyID, &a.DrugGroup, &a.Drug,
		&a.ExcelRowID, &a.QtyAcknowledged, &a.QtyReceived, &a.QtyMissing,
		&a.QtyDamaged, &a.Status, &a.AcknowledgedAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Acknowledgment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shipment_acknowledgments
			(id, shipment_id, study_id, drug_group, drug, excel_row_id,
			 qty_acknowledged, qty_received, qty_missing, qty_damaged,
			 status, acknowledged_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.ShipmentID, a.StudyID, a.DrugGroup, a.Drug, a.ExcelRowID,
		a.QtyAcknowledged, a.QtyReceived, a.QtyMissing, a.QtyDamaged,
		a.Status, a.AcknowledgedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id oid.ID) (*Acknowledgment, error) {
	return scanAck(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ackCols+` FROM shipment_acknowledgments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Acknowledgment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE shipment_acknowledgments SET
			shipment_id=$2, study_id=$3, drug_group=$4, drug=$5, excel_row_id=$6,
			qty_acknowledged=$7, qty_received=$8, qty_missing=$9, qty_damaged=$10,
			status=$11, acknowledged_at=$12, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.ShipmentID, a.StudyID, a.DrugGroup, a.Drug, a.ExcelRowID,
		a.QtyAcknowledged, a.QtyReceived, a.QtyMissing, a.QtyDamaged,
		a.Status, a.AcknowledgedAt)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id oid.ID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM shipment_acknowledgments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Acknowledgment, int, error) {
	query := `SELECT ` + ackCols + ` FROM shipment_acknowledgments WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM shipment_acknowledgments WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.ShipmentID != "" {
		cond := fmt.Sprintf(` AND shipment_id = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, f.ShipmentID)
		idx++
	}
	if f.StudyID != nil {
		cond := fmt.Sprintf(` AND study_id = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.StudyID)
		idx++
	}
	if f.Status != nil {
		cond := fmt.Sprintf(` AND status = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY acknowledged_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Acknowledgment
	for rows.Next() {
		a, err := scanAck(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT status, COUNT(*) FROM shipment_acknowledgments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{ByStatus: map[Status]int{}}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		st.ByStatus[status] = count
		st.Total += count
	}
	return st, rows.Err()
}
