package catalog

import (
	"context"

	"github.com/trialdesk/trialdesk/internal/domain/study"
	"github.com/trialdesk/trialdesk/pkg/oid"
)

type Repository interface {
	Create(ctx context.Context, cl *Classifier) error
	GetByID(ctx context.Context, id oid.ID) (*Classifier, error)
	Update(ctx context.Context, cl *Classifier) error
	Delete(ctx context.Context, id oid.ID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Classifier, int, error)
	All(ctx context.Context) ([]*Classifier, error)
	ExistsByName(ctx context.Context, name string, exclude oid.ID) (bool, error)
	// AssignedStudyIDs returns the distinct union of every record's member list.
	AssignedStudyIDs(ctx context.Context) ([]oid.ID, error)
	Stats(ctx context.Context) (*Stats, error)
}

// StudyDirectory is the slice of the study repository the classifier service
// needs: membership validation, population and the unassigned complement.
type StudyDirectory interface {
	GetByIDs(ctx context.Context, ids []oid.ID) ([]*study.Study, error)
	ExistingIDs(ctx context.Context, ids []oid.ID) (map[oid.ID]bool, error)
	All(ctx context.Context) ([]*study.Study, error)
}
