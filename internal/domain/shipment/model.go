// Package shipment tracks drug shipment acknowledgments recorded against
// studies during trial supply reconciliation.
package shipment

import (
	"time"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// Status classifies the outcome of a shipment acknowledgment.
type Status string

const (
	StatusReceived        Status = "received"
	StatusMissing         Status = "missing"
	StatusDamaged         Status = "damaged"
	StatusPartial         Status = "partial"
	StatusNotAcknowledged Status = "not-acknowledged"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusMissing, StatusDamaged, StatusPartial, StatusNotAcknowledged:
		return true
	}
	return false
}

// Acknowledgment maps to the shipment_acknowledgments table.
type Acknowledgment struct {
	ID              oid.ID    `db:"id" json:"id"`
	ShipmentID      string    `db:"shipment_id" json:"shipmentId"`
	StudyID         oid.ID    `db:"study_id" json:"studyId"`
	DrugGroup       string    `db:"drug_group" json:"drugGroup"`
	Drug            string    `db:"drug" json:"drug"`
	ExcelRowID      *oid.ID   `db:"excel_row_id" json:"excelRowId,omitempty"`
	QtyAcknowledged int       `db:"qty_acknowledged" json:"qtyAcknowledged"`
	QtyReceived     int       `db:"qty_received" json:"qtyReceived"`
	QtyMissing      int       `db:"qty_missing" json:"qtyMissing"`
	QtyDamaged      int       `db:"qty_damaged" json:"qtyDamaged"`
	Status          Status    `db:"status" json:"status"`
	AcknowledgedAt  time.Time `db:"acknowledged_at" json:"acknowledgedAt"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Input carries create/update fields for an acknowledgment.
type Input struct {
	ShipmentID      *string `json:"shipmentId"`
	StudyID         *string `json:"studyId"`
	DrugGroup       *string `json:"drugGroup"`
	Drug            *string `json:"drug"`
	ExcelRowID      *string `json:"excelRowId"`
	QtyAcknowledged *int    `json:"qtyAcknowledged"`
	QtyReceived     *int    `json:"qtyReceived"`
	QtyMissing      *int    `json:"qtyMissing"`
	QtyDamaged      *int    `json:"qtyDamaged"`
	Status          *Status `json:"status"`
	AcknowledgedAt  *string `json:"acknowledgedAt"`
}

// ListFilter narrows an acknowledgment listing.
type ListFilter struct {
	ShipmentID string
	StudyID    *oid.ID
	Status     *Status
}

// Stats is the per-status breakdown of all acknowledgments.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
}
