package intake

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

type mockFileRepo struct {
	data map[oid.ID]*ExcelFile
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{data: map[oid.ID]*ExcelFile{}}
}

func cloneFile(f *ExcelFile) *ExcelFile {
	cp := *f
	cp.StudyIDs = make([]oid.ID, len(f.StudyIDs))
	copy(cp.StudyIDs, f.StudyIDs)
	return &cp
}

func (m *mockFileRepo) Create(_ context.Context, f *ExcelFile) error {
	m.data[f.ID] = cloneFile(f)
	return nil
}

func (m *mockFileRepo) GetByID(_ context.Context, id oid.ID) (*ExcelFile, error) {
	f, ok := m.data[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneFile(f), nil
}

func (m *mockFileRepo) Update(_ context.Context, f *ExcelFile) error {
	if _, ok := m.data[f.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.data[f.ID] = cloneFile(f)
	return nil
}

func (m *mockFileRepo) Delete(_ context.Context, id oid.ID) error {
	if _, ok := m.data[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.data, id)
	return nil
}

func (m *mockFileRepo) List(_ context.Context, filter FileFilter, limit, offset int) ([]*ExcelFile, int, error) {
	var all []*ExcelFile
	for _, f := range m.data {
		if filter.Temporary != nil && f.Temporary != *filter.Temporary {
			continue
		}
		all = append(all, cloneFile(f))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

type mockRowRepo struct {
	data map[oid.ID]*ExcelRow
}

func newMockRowRepo() *mockRowRepo {
	return &mockRowRepo{data: map[oid.ID]*ExcelRow{}}
}

func cloneRow(r *ExcelRow) *ExcelRow {
	cp := *r
	cp.StudyIDs = make([]oid.ID, len(r.StudyIDs))
	copy(cp.StudyIDs, r.StudyIDs)
	return &cp
}

func (m *mockRowRepo) Create(_ context.Context, r *ExcelRow) error {
	m.data[r.ID] = cloneRow(r)
	return nil
}

func (m *mockRowRepo) GetByID(_ context.Context, id oid.ID) (*ExcelRow, error) {
	r, ok := m.data[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneRow(r), nil
}

func (m *mockRowRepo) Update(_ context.Context, r *ExcelRow) error {
	if _, ok := m.data[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.data[r.ID] = cloneRow(r)
	return nil
}

func (m *mockRowRepo) Delete(_ context.Context, id oid.ID) error {
	if _, ok := m.data[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.data, id)
	return nil
}

func (m *mockRowRepo) ListByFile(_ context.Context, fileID oid.ID, limit, offset int) ([]*ExcelRow, int, error) {
	var all []*ExcelRow
	for _, r := range m.data {
		if r.FileID == fileID {
			all = append(all, cloneRow(r))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockRowRepo) DeleteByFile(_ context.Context, fileID oid.ID) error {
	for id, r := range m.data {
		if r.FileID == fileID {
			delete(m.data, id)
		}
	}
	return nil
}

type mockSubmissionRepo struct {
	data map[oid.ID]*FormSubmission
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{data: map[oid.ID]*FormSubmission{}}
}

func (m *mockSubmissionRepo) Create(_ context.Context, s *FormSubmission) error {
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id oid.ID) (*FormSubmission, error) {
	s, ok := m.data[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, id oid.ID) error {
	if _, ok := m.data[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.data, id)
	return nil
}

func (m *mockSubmissionRepo) List(_ context.Context, limit, offset int) ([]*FormSubmission, int, error) {
	var all []*FormSubmission
	for _, s := range m.data {
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

type mockStageRepo struct {
	data map[oid.ID]*Stage
}

func newMockStageRepo() *mockStageRepo {
	return &mockStageRepo{data: map[oid.ID]*Stage{}}
}

func (m *mockStageRepo) Create(_ context.Context, s *Stage) error {
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *mockStageRepo) GetByID(_ context.Context, id oid.ID) (*Stage, error) {
	s, ok := m.data[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockStageRepo) Update(_ context.Context, s *Stage) error {
	if _, ok := m.data[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *mockStageRepo) Delete(_ context.Context, id oid.ID) error {
	if _, ok := m.data[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.data, id)
	return nil
}

func (m *mockStageRepo) ListOrdered(_ context.Context) ([]*Stage, error) {
	var all []*Stage
	for _, s := range m.data {
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Order != all[j].Order {
			return all[i].Order < all[j].Order
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

type mockLogRepo struct {
	entries []*MigrationLog
}

func (m *mockLogRepo) Append(_ context.Context, l *MigrationLog) error {
	cp := *l
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockLogRepo) List(_ context.Context, limit, offset int) ([]*MigrationLog, int, error) {
	total := len(m.entries)
	out := make([]*MigrationLog, 0, limit)
	for i := len(m.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *m.entries[i]
		out = append(out, &cp)
	}
	return out, total, nil
}

// passthroughTx runs the function directly; the mock repos have no notion of
// a transaction.
type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockFileRepo, *mockRowRepo) {
	files := newMockFileRepo()
	rows := newMockRowRepo()
	svc := NewService(files, rows, newMockSubmissionRepo(), newMockStageRepo(), &mockLogRepo{}, passthroughTx{})
	return svc, files, rows
}

func strptr(s string) *string { return &s }

func boolptr(b bool) *bool { return &b }

func intptr(i int) *int { return &i }

func TestCreateFile_Defaults(t *testing.T) {
	svc, _, _ := newTestService()

	f, err := svc.CreateFile(nil, ExcelFileInput{Name: strptr("  sites.xlsx  ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Name != "sites.xlsx" {
		t.Errorf("name = %q", f.Name)
	}
	if !f.Temporary {
		t.Error("new files must start temporary")
	}
	if f.StudyIDs == nil || len(f.StudyIDs) != 0 {
		t.Errorf("study list = %v, want empty", f.StudyIDs)
	}
	if f.SelectedColumns == nil {
		t.Error("selected columns must default to an empty map")
	}
	if !f.ID.Valid() {
		t.Errorf("bad id %q", f.ID)
	}
}

func TestCreateFile_MissingName(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.CreateFile(nil, ExcelFileInput{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestCreateFile_LegacySelectedStudies(t *testing.T) {
	svc, _, _ := newTestService()
	id := oid.New()

	f, err := svc.CreateFile(nil, ExcelFileInput{
		Name:            strptr("a.xlsx"),
		SelectedStudies: []string{id.String()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.StudyIDs) != 1 || f.StudyIDs[0] != id {
		t.Errorf("studies = %v", f.StudyIDs)
	}
}

func TestCreateFile_StudiesWinsOverLegacyField(t *testing.T) {
	svc, _, _ := newTestService()
	canonical := oid.New()
	legacy := oid.New()

	f, err := svc.CreateFile(nil, ExcelFileInput{
		Name:            strptr("a.xlsx"),
		Studies:         []string{canonical.String()},
		SelectedStudies: []string{legacy.String()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.StudyIDs) != 1 || f.StudyIDs[0] != canonical {
		t.Errorf("studies = %v, want canonical field to win", f.StudyIDs)
	}
}

func TestCreateFile_MalformedStudyID(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateFile(nil, ExcelFileInput{
		Name:    strptr("a.xlsx"),
		Studies: []string{"not-an-id"},
	})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestMarkPermanent(t *testing.T) {
	svc, _, _ := newTestService()
	f, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("a.xlsx")})

	got, err := svc.MarkPermanent(nil, f.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Temporary {
		t.Error("file still temporary after MarkPermanent")
	}
}

func TestUpdateFile_Partial(t *testing.T) {
	svc, _, _ := newTestService()
	f, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("a.xlsx"), Path: strptr("/tmp/a")})

	got, err := svc.UpdateFile(nil, f.ID, ExcelFileInput{Name: strptr("b.xlsx")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "b.xlsx" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Path != "/tmp/a" {
		t.Errorf("path = %q, want untouched", got.Path)
	}
}

func TestDeleteFile_CascadesRows(t *testing.T) {
	svc, _, rows := newTestService()
	f, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("a.xlsx")})
	other, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("b.xlsx")})

	svc.CreateRow(nil, f.ID, ExcelRowInput{Payload: map[string]interface{}{"k": "v"}})
	svc.CreateRow(nil, f.ID, ExcelRowInput{Payload: map[string]interface{}{"k": "w"}})
	kept, _ := svc.CreateRow(nil, other.ID, ExcelRowInput{Payload: map[string]interface{}{"k": "x"}})

	if err := svc.DeleteFile(nil, f.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows.data) != 1 {
		t.Fatalf("rows remaining = %d, want 1", len(rows.data))
	}
	if _, ok := rows.data[kept.ID]; !ok {
		t.Error("row of the other file must survive")
	}
	if _, err := svc.GetFile(nil, f.ID); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("get after delete: err = %v", err)
	}
}

func TestCreateRow_UnknownFile(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateRow(nil, oid.New(), ExcelRowInput{Payload: map[string]interface{}{"k": "v"}})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}

func TestCreateRow_EmptyPayload(t *testing.T) {
	svc, _, _ := newTestService()
	f, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("a.xlsx")})
	if _, err := svc.CreateRow(nil, f.ID, ExcelRowInput{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestMarkRowSent(t *testing.T) {
	svc, _, _ := newTestService()
	f, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("a.xlsx")})
	row, _ := svc.CreateRow(nil, f.ID, ExcelRowInput{Payload: map[string]interface{}{"k": "v"}})
	record := oid.New()

	got, err := svc.MarkRowSent(nil, row.ID, &record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Sent {
		t.Error("row not marked sent")
	}
	if got.ClinicalRecordID == nil || *got.ClinicalRecordID != record {
		t.Errorf("clinical record = %v", got.ClinicalRecordID)
	}
}

func TestMarkRowSent_KeepsExistingRecordRef(t *testing.T) {
	svc, _, _ := newTestService()
	f, _ := svc.CreateFile(nil, ExcelFileInput{Name: strptr("a.xlsx")})
	record := oid.New().String()
	row, _ := svc.CreateRow(nil, f.ID, ExcelRowInput{
		Payload:          map[string]interface{}{"k": "v"},
		ClinicalRecordID: &record,
	})

	got, err := svc.MarkRowSent(nil, row.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ClinicalRecordID == nil || got.ClinicalRecordID.String() != record {
		t.Errorf("clinical record = %v, want preserved", got.ClinicalRecordID)
	}
}

func TestListRows_UnknownFile(t *testing.T) {
	svc, _, _ := newTestService()
	if _, _, err := svc.ListRows(nil, oid.New(), 10, 0); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}

func TestCreateSubmission_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.CreateSubmission(nil, "", map[string]interface{}{"a": 1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank form name: err = %v", err)
	}
	if _, err := svc.CreateSubmission(nil, "screening", nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("nil payload: err = %v", err)
	}

	sub, err := svc.CreateSubmission(nil, " screening ", map[string]interface{}{"a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.FormName != "screening" {
		t.Errorf("form name = %q", sub.FormName)
	}
	if sub.SubmittedAt.IsZero() {
		t.Error("submittedAt not set")
	}
}

func TestStages_OrderedListing(t *testing.T) {
	svc, _, _ := newTestService()
	svc.CreateStage(nil, StageInput{Name: strptr("Review"), Order: intptr(2)})
	svc.CreateStage(nil, StageInput{Name: strptr("Upload"), Order: intptr(0)})
	svc.CreateStage(nil, StageInput{Name: strptr("Map"), Order: intptr(1)})

	stages, err := svc.ListStages(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	for _, s := range stages {
		names = append(names, s.Name)
	}
	want := []string{"Upload", "Map", "Review"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestCreateStage_NegativeOrder(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateStage(nil, StageInput{Name: strptr("X"), Order: intptr(-1)})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestUpdateStage_TogglesActive(t *testing.T) {
	svc, _, _ := newTestService()
	st, _ := svc.CreateStage(nil, StageInput{Name: strptr("Upload")})
	if !st.Active {
		t.Fatal("stages must default to active")
	}

	got, err := svc.UpdateStage(nil, st.ID, StageInput{Active: boolptr(false)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Active {
		t.Error("stage still active")
	}
	if got.Name != "Upload" {
		t.Errorf("name = %q, want untouched", got.Name)
	}
}

func TestAppendLog_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.AppendLog(nil, "", "visit", nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank page: err = %v", err)
	}
	if _, err := svc.AppendLog(nil, "studies", "", nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank action: err = %v", err)
	}

	l, err := svc.AppendLog(nil, "studies", "migrated", strptr("42 rows"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Page != "studies" || l.Action != "migrated" || l.Detail == nil {
		t.Errorf("log = %+v", l)
	}
}

func TestListLogs_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	svc.AppendLog(nil, "studies", "first", nil)
	svc.AppendLog(nil, "studies", "second", nil)

	logs, total, err := svc.ListLogs(nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(logs) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(logs))
	}
	if logs[0].Action != "second" {
		t.Errorf("first entry = %q, want newest", logs[0].Action)
	}
}
