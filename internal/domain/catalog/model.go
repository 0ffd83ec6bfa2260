// Package catalog implements the study classifier collections: study designs,
// study types and study phases. All three share one record shape and one set
// of operations; each kind is backed by its own table.
package catalog

import (
	"time"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// Kind selects which classifier collection a repository and service operate on.
type Kind string

const (
	KindDesign Kind = "study_design"
	KindType   Kind = "study_type"
	KindPhase  Kind = "study_phase"
)

// Table returns the backing table name for the kind.
func (k Kind) Table() string { return string(k) }

// Label returns the human-readable singular name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindDesign:
		return "study design"
	case KindType:
		return "study type"
	case KindPhase:
		return "study phase"
	}
	return string(k)
}

// Classifier is one record of a classifier collection. StudyIDs is the
// canonical member list; the reverse direction lives only here, never on the
// studies themselves.
type Classifier struct {
	ID          oid.ID    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Slug        string    `db:"slug" json:"slug"`
	UID         string    `db:"uid" json:"uid"`
	Active      bool      `db:"active" json:"isActive"`
	StudyIDs    []oid.ID  `db:"study_ids" json:"studies"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// CreateInput carries the fields accepted on create.
type CreateInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Active      *bool    `json:"isActive"`
	Studies     []string `json:"studies"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Active      *bool     `json:"isActive"`
	Studies     *[]string `json:"studies"`
}

// ListFilter narrows a classifier listing.
type ListFilter struct {
	Search      string
	Active      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortDir     string
}

// DistributionBucket is one member-count bucket in the stats payload.
type DistributionBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// Stats summarizes a classifier collection.
type Stats struct {
	Total        int                  `json:"total"`
	Active       int                  `json:"active"`
	Inactive     int                  `json:"inactive"`
	Recent       int                  `json:"recent"`
	Distribution []DistributionBucket `json:"distribution"`
}

// SyncReport is the outcome of a sync-relationships pass.
type SyncReport struct {
	Checked       int                 `json:"checked"`
	RepairedLists int                 `json:"repairedLists"`
	RemovedRefs   int                 `json:"removedRefs"`
	Duplicates    map[string][]string `json:"duplicates"`
}
