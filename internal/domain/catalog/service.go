package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/trialdesk/trialdesk/internal/domain/study"
	"github.com/trialdesk/trialdesk/pkg/oid"
	"github.com/trialdesk/trialdesk/pkg/slug"
)

// ErrInvalid wraps every validation failure so handlers can map it to a 400.
var ErrInvalid = fmt.Errorf("invalid input")

// ErrNotMember signals a removal of a study that was not in the member list.
var ErrNotMember = fmt.Errorf("study is not assigned")

// MissingStudiesError reports well-formed study ids that resolve to nothing.
type MissingStudiesError struct {
	IDs []oid.ID
}

func (e *MissingStudiesError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = string(id)
	}
	return "studies not found: " + strings.Join(parts, ", ")
}

type Service struct {
	kind    Kind
	repo    Repository
	studies StudyDirectory
}

func NewService(kind Kind, repo Repository, studies StudyDirectory) *Service {
	return &Service{kind: kind, repo: repo, studies: studies}
}

func (s *Service) Kind() Kind { return s.kind }

// normalize applies the pre-persist rules: trimmed name, derived slug, a
// stable uid assigned once.
func normalize(cl *Classifier) {
	cl.Name = strings.TrimSpace(cl.Name)
	cl.Slug = slug.Make(cl.Name)
	if cl.UID == "" {
		cl.UID = slug.UniqueID()
	}
	if cl.StudyIDs == nil {
		cl.StudyIDs = []oid.ID{}
	}
}

// resolveStudyIDs validates id formats (400) and existence (404), returning
// the parsed list.
func (s *Service) resolveStudyIDs(ctx context.Context, raw []string) ([]oid.ID, error) {
	ids := make([]oid.ID, 0, len(raw))
	for _, r := range raw {
		id, err := oid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	found, err := s.studies.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []oid.ID
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingStudiesError{IDs: missing}
	}
	return ids, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Classifier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	taken, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s %q already exists", ErrInvalid, s.kind.Label(), name)
	}

	members, err := s.resolveStudyIDs(ctx, in.Studies)
	if err != nil {
		return nil, err
	}

	cl := &Classifier{
		ID:          oid.New(),
		Name:        name,
		Description: in.Description,
		Active:      true,
		StudyIDs:    members,
	}
	if in.Active != nil {
		cl.Active = *in.Active
	}
	normalize(cl)

	if err := s.repo.Create(ctx, cl); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, cl.ID)
}

func (s *Service) Get(ctx context.Context, id oid.ID) (*Classifier, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id oid.ID, in UpdateInput) (*Classifier, error) {
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		if !strings.EqualFold(name, cl.Name) {
			taken, err := s.repo.ExistsByName(ctx, name, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("%w: %s %q already exists", ErrInvalid, s.kind.Label(), name)
			}
		}
		cl.Name = name
	}
	if in.Description != nil {
		cl.Description = in.Description
	}
	if in.Active != nil {
		cl.Active = *in.Active
	}
	if in.Studies != nil {
		members, err := s.resolveStudyIDs(ctx, *in.Studies)
		if err != nil {
			return nil, err
		}
		cl.StudyIDs = members
	}
	normalize(cl)

	if err := s.repo.Update(ctx, cl); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ToggleStatus(ctx context.Context, id oid.ID) (*Classifier, error) {
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cl.Active = !cl.Active
	if err := s.repo.Update(ctx, cl); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id oid.ID) (*Classifier, error) {
	// Load first so the caller can report what was removed.
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return cl, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Classifier, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// Members returns the populated studies of a record.
func (s *Service) Members(ctx context.Context, id oid.ID) ([]*study.Study, error) {
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(cl.StudyIDs) == 0 {
		return []*study.Study{}, nil
	}
	return s.studies.GetByIDs(ctx, cl.StudyIDs)
}

func (s *Service) AddMember(ctx context.Context, id, studyID oid.ID) (*Classifier, error) {
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	found, err := s.studies.ExistingIDs(ctx, []oid.ID{studyID})
	if err != nil {
		return nil, err
	}
	if !found[studyID] {
		return nil, &MissingStudiesError{IDs: []oid.ID{studyID}}
	}
	for _, existing := range cl.StudyIDs {
		if existing == studyID {
			return nil, fmt.Errorf("%w: study already assigned to this %s", ErrInvalid, s.kind.Label())
		}
	}
	cl.StudyIDs = append(cl.StudyIDs, studyID)
	if err := s.repo.Update(ctx, cl); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// RemoveMember filters the member list; an unchanged length means the study
// was not assigned.
func (s *Service) RemoveMember(ctx context.Context, id, studyID oid.ID) (*Classifier, error) {
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	kept := cl.StudyIDs[:0]
	for _, existing := range cl.StudyIDs {
		if existing != studyID {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(cl.StudyIDs) {
		return nil, ErrNotMember
	}
	cl.StudyIDs = kept
	if err := s.repo.Update(ctx, cl); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// BulkAdd validates every id up front, then adds only the subset not already
// present. Returns the updated record and how many were newly added.
func (s *Service) BulkAdd(ctx context.Context, id oid.ID, rawIDs []string) (*Classifier, int, error) {
	if len(rawIDs) == 0 {
		return nil, 0, fmt.Errorf("%w: studies list is empty", ErrInvalid)
	}
	cl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	ids, err := s.resolveStudyIDs(ctx, rawIDs)
	if err != nil {
		return nil, 0, err
	}

	present := make(map[oid.ID]bool, len(cl.StudyIDs))
	for _, existing := range cl.StudyIDs {
		present[existing] = true
	}
	added := 0
	for _, sid := range ids {
		if present[sid] {
			continue
		}
		cl.StudyIDs = append(cl.StudyIDs, sid)
		present[sid] = true
		added++
	}
	if added > 0 {
		if err := s.repo.Update(ctx, cl); err != nil {
			return nil, 0, err
		}
	}
	cl, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return cl, added, nil
}

// AvailableStudies returns studies referenced by no record of this kind.
func (s *Service) AvailableStudies(ctx context.Context) ([]*study.Study, error) {
	assigned, err := s.repo.AssignedStudyIDs(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[oid.ID]bool, len(assigned))
	for _, id := range assigned {
		taken[id] = true
	}
	all, err := s.studies.All(ctx)
	if err != nil {
		return nil, err
	}
	available := []*study.Study{}
	for _, st := range all {
		if !taken[st.ID] {
			available = append(available, st)
		}
	}
	return available, nil
}

// SyncRelationships is the operator-triggered repair pass: malformed member
// lists are reset, dangling references dropped, and multi-assignment reported
// without being fixed. Safe to run repeatedly.
func (s *Service) SyncRelationships(ctx context.Context) (*SyncReport, error) {
	records, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Duplicates: map[string][]string{}}
	owners := map[oid.ID][]oid.ID{}

	for _, cl := range records {
		report.Checked++
		changed := false

		wellFormed := cl.StudyIDs[:0]
		for _, id := range cl.StudyIDs {
			if id.Valid() {
				wellFormed = append(wellFormed, id)
			}
		}
		if len(wellFormed) != len(cl.StudyIDs) {
			report.RepairedLists++
			changed = true
		}
		cl.StudyIDs = wellFormed

		if len(cl.StudyIDs) > 0 {
			found, err := s.studies.ExistingIDs(ctx, cl.StudyIDs)
			if err != nil {
				return nil, err
			}
			resolved := cl.StudyIDs[:0]
			for _, id := range cl.StudyIDs {
				if found[id] {
					resolved = append(resolved, id)
				} else {
					report.RemovedRefs++
					changed = true
				}
			}
			cl.StudyIDs = resolved
		}

		for _, id := range cl.StudyIDs {
			owners[id] = append(owners[id], cl.ID)
		}

		if changed {
			if err := s.repo.Update(ctx, cl); err != nil {
				return nil, err
			}
		}
	}

	for studyID, clIDs := range owners {
		if len(clIDs) > 1 {
			refs := make([]string, len(clIDs))
			for i, clID := range clIDs {
				refs[i] = string(clID)
			}
			report.Duplicates[string(studyID)] = refs
		}
	}
	return report, nil
}
