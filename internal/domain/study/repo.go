package study

import (
	"context"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

type Repository interface {
	Create(ctx context.Context, s *Study) error
	GetByID(ctx context.Context, id oid.ID) (*Study, error)
	GetByIDs(ctx context.Context, ids []oid.ID) ([]*Study, error)
	Update(ctx context.Context, s *Study) error
	Delete(ctx context.Context, id oid.ID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Study, int, error)
	All(ctx context.Context) ([]*Study, error)
	ExistingIDs(ctx context.Context, ids []oid.ID) (map[oid.ID]bool, error)
	ExistsByProtocol(ctx context.Context, protocol string, exclude oid.ID) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
}
