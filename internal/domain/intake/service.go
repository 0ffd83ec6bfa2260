package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// ErrInvalid wraps every validation failure so handlers can map it to a 400.
var ErrInvalid = fmt.Errorf("invalid input")

// Transactor runs a function inside a single database transaction.
// Satisfied by db.TxRunner.
type Transactor interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

type Service struct {
	files       FileRepository
	rows        RowRepository
	submissions SubmissionRepository
	stages      StageRepository
	logs        LogRepository
	tx          Transactor
}

func NewService(
	files FileRepository,
	rows RowRepository,
	submissions SubmissionRepository,
	stages StageRepository,
	logs LogRepository,
	tx Transactor,
) *Service {
	return &Service{
		files:       files,
		rows:        rows,
		submissions: submissions,
		stages:      stages,
		logs:        logs,
		tx:          tx,
	}
}

func parseIDList(raw []string) ([]oid.ID, error) {
	ids := make([]oid.ID, 0, len(raw))
	for _, r := range raw {
		id, err := oid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// studyRefs picks the canonical studies field, falling back to the legacy
// selectedStudies name only when studies is absent.
func studyRefs(in ExcelFileInput) []string {
	if in.Studies != nil {
		return in.Studies
	}
	return in.SelectedStudies
}

// -- Excel Files --

func (s *Service) CreateFile(ctx context.Context, in ExcelFileInput) (*ExcelFile, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	ids, err := parseIDList(studyRefs(in))
	if err != nil {
		return nil, err
	}

	f := &ExcelFile{
		ID:              oid.New(),
		Name:            strings.TrimSpace(*in.Name),
		UploadedAt:      time.Now().UTC(),
		SelectedColumns: in.SelectedColumns,
		Temporary:       true,
		StudyIDs:        ids,
	}
	if in.Path != nil {
		f.Path = *in.Path
	}
	if in.Temporary != nil {
		f.Temporary = *in.Temporary
	}
	if f.SelectedColumns == nil {
		f.SelectedColumns = map[string]interface{}{}
	}

	if err := s.files.Create(ctx, f); err != nil {
		return nil, err
	}
	return s.files.GetByID(ctx, f.ID)
}

func (s *Service) GetFile(ctx context.Context, id oid.ID) (*ExcelFile, error) {
	return s.files.GetByID(ctx, id)
}

func (s *Service) UpdateFile(ctx context.Context, id oid.ID, in ExcelFileInput) (*ExcelFile, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		f.Name = name
	}
	if in.Path != nil {
		f.Path = *in.Path
	}
	if in.SelectedColumns != nil {
		f.SelectedColumns = in.SelectedColumns
	}
	if in.Temporary != nil {
		f.Temporary = *in.Temporary
	}
	if refs := studyRefs(in); refs != nil {
		ids, err := parseIDList(refs)
		if err != nil {
			return nil, err
		}
		f.StudyIDs = ids
	}

	if err := s.files.Update(ctx, f); err != nil {
		return nil, err
	}
	return s.files.GetByID(ctx, id)
}

// MarkPermanent clears the temporary flag set on upload.
func (s *Service) MarkPermanent(ctx context.Context, id oid.ID) (*ExcelFile, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Temporary = false
	if err := s.files.Update(ctx, f); err != nil {
		return nil, err
	}
	return s.files.GetByID(ctx, id)
}

// DeleteFile removes the file and its extracted rows in one transaction.
func (s *Service) DeleteFile(ctx context.Context, id oid.ID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.rows.DeleteByFile(ctx, id); err != nil {
			return err
		}
		return s.files.Delete(ctx, id)
	})
}

func (s *Service) ListFiles(ctx context.Context, f FileFilter, limit, offset int) ([]*ExcelFile, int, error) {
	return s.files.List(ctx, f, limit, offset)
}

// -- Excel Rows --

func (s *Service) CreateRow(ctx context.Context, fileID oid.ID, in ExcelRowInput) (*ExcelRow, error) {
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	if len(in.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalid)
	}
	ids, err := parseIDList(in.Studies)
	if err != nil {
		return nil, err
	}

	row := &ExcelRow{
		ID:       oid.New(),
		FileID:   fileID,
		Payload:  in.Payload,
		StudyIDs: ids,
	}
	if in.ClinicalRecordID != nil {
		cid, err := oid.Parse(*in.ClinicalRecordID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		row.ClinicalRecordID = &cid
	}

	if err := s.rows.Create(ctx, row); err != nil {
		return nil, err
	}
	return s.rows.GetByID(ctx, row.ID)
}

func (s *Service) UpdateRow(ctx context.Context, id oid.ID, in ExcelRowInput) (*ExcelRow, error) {
	row, err := s.rows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Payload != nil {
		row.Payload = in.Payload
	}
	if in.Studies != nil {
		ids, err := parseIDList(in.Studies)
		if err != nil {
			return nil, err
		}
		row.StudyIDs = ids
	}
	if in.ClinicalRecordID != nil {
		cid, err := oid.Parse(*in.ClinicalRecordID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		row.ClinicalRecordID = &cid
	}

	if err := s.rows.Update(ctx, row); err != nil {
		return nil, err
	}
	return s.rows.GetByID(ctx, id)
}

// MarkRowSent flags a row as forwarded to the clinical system, optionally
// recording the created clinical record.
func (s *Service) MarkRowSent(ctx context.Context, id oid.ID, clinicalRecordID *oid.ID) (*ExcelRow, error) {
	row, err := s.rows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	row.Sent = true
	if clinicalRecordID != nil {
		row.ClinicalRecordID = clinicalRecordID
	}
	if err := s.rows.Update(ctx, row); err != nil {
		return nil, err
	}
	return s.rows.GetByID(ctx, id)
}

func (s *Service) DeleteRow(ctx context.Context, id oid.ID) error {
	return s.rows.Delete(ctx, id)
}

func (s *Service) ListRows(ctx context.Context, fileID oid.ID, limit, offset int) ([]*ExcelRow, int, error) {
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		return nil, 0, err
	}
	return s.rows.ListByFile(ctx, fileID, limit, offset)
}

// -- Form Submissions --

func (s *Service) CreateSubmission(ctx context.Context, formName string, payload map[string]interface{}) (*FormSubmission, error) {
	if strings.TrimSpace(formName) == "" {
		return nil, fmt.Errorf("%w: formName is required", ErrInvalid)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalid)
	}
	sub := &FormSubmission{
		ID:          oid.New(),
		FormName:    strings.TrimSpace(formName),
		Payload:     payload,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, err
	}
	return s.submissions.GetByID(ctx, sub.ID)
}

func (s *Service) GetSubmission(ctx context.Context, id oid.ID) (*FormSubmission, error) {
	return s.submissions.GetByID(ctx, id)
}

func (s *Service) DeleteSubmission(ctx context.Context, id oid.ID) error {
	return s.submissions.Delete(ctx, id)
}

func (s *Service) ListSubmissions(ctx context.Context, limit, offset int) ([]*FormSubmission, int, error) {
	return s.submissions.List(ctx, limit, offset)
}

// -- Stages --

func (s *Service) CreateStage(ctx context.Context, in StageInput) (*Stage, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	st := &Stage{
		ID:     oid.New(),
		Name:   strings.TrimSpace(*in.Name),
		Active: true,
	}
	if in.Order != nil {
		if *in.Order < 0 {
			return nil, fmt.Errorf("%w: order must be non-negative", ErrInvalid)
		}
		st.Order = *in.Order
	}
	if in.Active != nil {
		st.Active = *in.Active
	}
	if err := s.stages.Create(ctx, st); err != nil {
		return nil, err
	}
	return s.stages.GetByID(ctx, st.ID)
}

func (s *Service) GetStage(ctx context.Context, id oid.ID) (*Stage, error) {
	return s.stages.GetByID(ctx, id)
}

func (s *Service) UpdateStage(ctx context.Context, id oid.ID, in StageInput) (*Stage, error) {
	st, err := s.stages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		st.Name = name
	}
	if in.Order != nil {
		if *in.Order < 0 {
			return nil, fmt.Errorf("%w: order must be non-negative", ErrInvalid)
		}
		st.Order = *in.Order
	}
	if in.Active != nil {
		st.Active = *in.Active
	}
	if err := s.stages.Update(ctx, st); err != nil {
		return nil, err
	}
	return s.stages.GetByID(ctx, id)
}

func (s *Service) DeleteStage(ctx context.Context, id oid.ID) error {
	return s.stages.Delete(ctx, id)
}

func (s *Service) ListStages(ctx context.Context) ([]*Stage, error) {
	return s.stages.ListOrdered(ctx)
}

// -- Migration Logs --

func (s *Service) AppendLog(ctx context.Context, page, action string, detail *string) (*MigrationLog, error) {
	if strings.TrimSpace(page) == "" {
		return nil, fmt.Errorf("%w: page is required", ErrInvalid)
	}
	if strings.TrimSpace(action) == "" {
		return nil, fmt.Errorf("%w: action is required", ErrInvalid)
	}
	l := &MigrationLog{
		ID:        oid.New(),
		Page:      strings.TrimSpace(page),
		Action:    strings.TrimSpace(action),
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.logs.Append(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListLogs(ctx context.Context, limit, offset int) ([]*MigrationLog, int, error) {
	return s.logs.List(ctx, limit, offset)
}
