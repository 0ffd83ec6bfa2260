package study

import (
	"time"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// Study maps to the studies table.
type Study struct {
	ID             oid.ID     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	ProtocolNumber *string    `db:"protocol_number" json:"protocol_number,omitempty"`
	Title          *string    `db:"title" json:"title,omitempty"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateInput carries the fields accepted on create.
type CreateInput struct {
	Name           string     `json:"name"`
	ProtocolNumber *string    `json:"protocol_number"`
	Title          *string    `json:"title"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name           *string    `json:"name"`
	ProtocolNumber *string    `json:"protocol_number"`
	Title          *string    `json:"title"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

// ListFilter narrows a study listing.
type ListFilter struct {
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortDir     string
}

// Stats summarizes the study collection.
type Stats struct {
	Total           int `json:"total"`
	Recent          int `json:"recent"`
	WithProtocol    int `json:"with_protocol"`
	WithoutProtocol int `json:"without_protocol"`
}
