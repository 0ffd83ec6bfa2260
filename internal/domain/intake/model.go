// Package intake holds the excel ingestion records: uploaded files, their
// extracted rows, raw form submissions, workflow stages and the page
// migration log.
package intake

import (
	"encoding/json"
	"time"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// ExcelFile maps to the excel_files table. StudyIDs is the canonical study
// reference list; selectedStudies on the wire is a derived read-only alias.
type ExcelFile struct {
	ID              oid.ID                 `db:"id" json:"id"`
	Name            string                 `db:"name" json:"name"`
	Path            string                 `db:"path" json:"path"`
	UploadedAt      time.Time              `db:"uploaded_at" json:"uploadedAt"`
	SelectedColumns map[string]interface{} `db:"selected_columns" json:"selectedColumns"`
	Temporary       bool                   `db:"temporary" json:"temporary"`
	StudyIDs        []oid.ID               `db:"study_ids" json:"studies"`
	CreatedAt       time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updatedAt"`
}

// MarshalJSON emits selectedStudies as a read-only mirror of studies.
func (f *ExcelFile) MarshalJSON() ([]byte, error) {
	type alias ExcelFile
	return json.Marshal(struct {
		*alias
		SelectedStudies []oid.ID `json:"selectedStudies"`
	}{(*alias)(f), f.StudyIDs})
}

// ExcelFileInput carries create/update fields. selectedStudies is honored
// only when studies is absent, for callers still on the legacy field name.
type ExcelFileInput struct {
	Name            *string                `json:"name"`
	Path            *string                `json:"path"`
	SelectedColumns map[string]interface{} `json:"selectedColumns"`
	Temporary       *bool                  `json:"temporary"`
	Studies         []string               `json:"studies"`
	SelectedStudies []string               `json:"selectedStudies"`
}

// FileFilter narrows an excel file listing.
type FileFilter struct {
	Search    string
	Temporary *bool
}

// ExcelRow maps to the excel_rows table. Payload carries the raw cell data.
type ExcelRow struct {
	ID               oid.ID                 `db:"id" json:"id"`
	FileID           oid.ID                 `db:"file_id" json:"fileId"`
	Payload          map[string]interface{} `db:"payload" json:"payload"`
	StudyIDs         []oid.ID               `db:"study_ids" json:"studies"`
	Sent             bool                   `db:"sent" json:"sent"`
	ClinicalRecordID *oid.ID                `db:"clinical_record_id" json:"clinicalRecordId,omitempty"`
	CreatedAt        time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time              `db:"updated_at" json:"updatedAt"`
}

// ExcelRowInput carries create/update fields for a row.
type ExcelRowInput struct {
	Payload          map[string]interface{} `json:"payload"`
	Studies          []string               `json:"studies"`
	ClinicalRecordID *string                `json:"clinicalRecordId"`
}

// FormSubmission maps to the form_submissions table.
type FormSubmission struct {
	ID          oid.ID                 `db:"id" json:"id"`
	FormName    string                 `db:"form_name" json:"formName"`
	Payload     map[string]interface{} `db:"payload" json:"payload"`
	SubmittedAt time.Time              `db:"submitted_at" json:"submittedAt"`
}

// Stage maps to the stages table.
type Stage struct {
	ID        oid.ID    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Order     int       `db:"position" json:"order"`
	Active    bool      `db:"active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// StageInput carries create/update fields for a stage.
type StageInput struct {
	Name   *string `json:"name"`
	Order  *int    `json:"order"`
	Active *bool   `json:"isActive"`
}

// MigrationLog maps to the page_migration_logs table.
type MigrationLog struct {
	ID        oid.ID    `db:"id" json:"id"`
	Page      string    `db:"page" json:"page"`
	Action    string    `db:"action" json:"action"`
	Detail    *string   `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
