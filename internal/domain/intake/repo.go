package intake

import (
	"context"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

type FileRepository interface {
	Create(ctx context.Context, f *ExcelFile) error
	GetByID(ctx context.Context, id oid.ID) (*ExcelFile, error)
	Update(ctx context.Context, f *ExcelFile) error
	Delete(ctx context.Context, id oid.ID) error
	List(ctx context.Context, f FileFilter, limit, offset int) ([]*ExcelFile, int, error)
}

type RowRepository interface {
	Create(ctx context.Context, r *ExcelRow) error
	GetByID(ctx context.Context, id oid.ID) (*ExcelRow, error)
	Update(ctx context.Context, r *ExcelRow) error
	Delete(ctx context.Context, id oid.ID) error
	ListByFile(ctx context.Context, fileID oid.ID, limit, offset int) ([]*ExcelRow, int, error)
	DeleteByFile(ctx context.Context, fileID oid.ID) error
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *FormSubmission) error
	GetByID(ctx context.Context, id oid.ID) (*FormSubmission, error)
	Delete(ctx context.Context, id oid.ID) error
	List(ctx context.Context, limit, offset int) ([]*FormSubmission, int, error)
}

type StageRepository interface {
	Create(ctx context.Context, s *Stage) error
	GetByID(ctx context.Context, id oid.ID) (*Stage, error)
	Update(ctx context.Context, s *Stage) error
	Delete(ctx context.Context, id oid.ID) error
	// ListOrdered returns all stages sorted by their position.
	ListOrdered(ctx context.Context) ([]*Stage, error)
}

type LogRepository interface {
	Append(ctx context.Context, l *MigrationLog) error
	List(ctx context.Context, limit, offset int) ([]*MigrationLog, int, error)
}
