package shipment

import (
	"context"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

type Repository interface {
	Create(ctx context.Context, a *Acknowledgment) error
	GetByID(ctx context.Context, id oid.ID) (*Acknowledgment, error)
	Update(ctx context.Context, a *Acknowledgment) error
	Delete(ctx context.Context, id oid.ID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Acknowledgment, int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// StudyChecker verifies study references before an acknowledgment is
// persisted. Satisfied by the study repository.
type StudyChecker interface {
	ExistingIDs(ctx context.Context, ids []oid.ID) (map[oid.ID]bool, error)
}
