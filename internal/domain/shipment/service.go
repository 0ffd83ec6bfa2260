package shipment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// ErrInvalid wraps every validation failure so handlers can map it to a 400.
var ErrInvalid = fmt.Errorf("invalid input")

// ErrStudyNotFound marks an acknowledgment referencing an unknown study.
var ErrStudyNotFound = fmt.Errorf("study not found")

type Service struct {
	repo    Repository
	studies StudyChecker
}

func NewService(repo Repository, studies StudyChecker) *Service {
	return &Service{repo: repo, studies: studies}
}

// deriveStatus infers a status from the quantity breakdown when the caller
// did not supply one.
func deriveStatus(a *Acknowledgment) Status {
	switch {
	case a.QtyAcknowledged == 0:
		return StatusNotAcknowledged
	case a.QtyReceived == a.QtyAcknowledged && a.QtyMissing == 0 && a.QtyDamaged == 0:
		return StatusReceived
	default:
		return StatusPartial
	}
}

func validateQuantities(a *Acknowledgment) error {
	if a.QtyAcknowledged < 0 || a.QtyReceived < 0 || a.QtyMissing < 0 || a.QtyDamaged < 0 {
		return fmt.Errorf("%w: quantities must be non-negative", ErrInvalid)
	}
	return nil
}

func (s *Service) checkStudy(ctx context.Context, id oid.ID) error {
	found, err := s.studies.ExistingIDs(ctx, []oid.ID{id})
	if err != nil {
		return err
	}
	if !found[id] {
		return fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Acknowledgment, error) {
	if in.ShipmentID == nil || strings.TrimSpace(*in.ShipmentID) == "" {
		return nil, fmt.Errorf("%w: shipmentId is required", ErrInvalid)
	}
	if in.StudyID == nil {
		return nil, fmt.Errorf("%w: studyId is required", ErrInvalid)
	}
	studyID, err := oid.Parse(*in.StudyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.checkStudy(ctx, studyID); err != nil {
		return nil, err
	}

	a := &Acknowledgment{
		ID:             oid.New(),
		ShipmentID:     strings.TrimSpace(*in.ShipmentID),
		StudyID:        studyID,
		AcknowledgedAt: time.Now().UTC(),
	}
	if in.DrugGroup != nil {
		a.DrugGroup = strings.TrimSpace(*in.DrugGroup)
	}
	if in.Drug != nil {
		a.Drug = strings.TrimSpace(*in.Drug)
	}
	if in.ExcelRowID != nil {
		rowID, err := oid.Parse(*in.ExcelRowID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		a.ExcelRowID = &rowID
	}
	if in.QtyAcknowledged != nil {
		a.QtyAcknowledged = *in.QtyAcknowledged
	}
	if in.QtyReceived != nil {
		a.QtyReceived = *in.QtyReceived
	}
	if in.QtyMissing != nil {
		a.QtyMissing = *in.QtyMissing
	}
	if in.QtyDamaged != nil {
		a.QtyDamaged = *in.QtyDamaged
	}
	if err := validateQuantities(a); err != nil {
		return nil, err
	}
	if in.AcknowledgedAt != nil {
		t, err := time.Parse(time.RFC3339, *in.AcknowledgedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid acknowledgedAt: %v", ErrInvalid, err)
		}
		a.AcknowledgedAt = t
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, *in.Status)
		}
		a.Status = *in.Status
	} else {
		a.Status = deriveStatus(a)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, a.ID)
}

func (s *Service) Get(ctx context.Context, id oid.ID) (*Acknowledgment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id oid.ID, in Input) (*Acknowledgment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.ShipmentID != nil {
		sid := strings.TrimSpace(*in.ShipmentID)
		if sid == "" {
			return nil, fmt.Errorf("%w: shipmentId cannot be empty", ErrInvalid)
		}
		a.ShipmentID = sid
	}
	if in.StudyID != nil {
		studyID, err := oid.Parse(*in.StudyID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if err := s.checkStudy(ctx, studyID); err != nil {
			return nil, err
		}
		a.StudyID = studyID
	}
	if in.DrugGroup != nil {
		a.DrugGroup = strings.TrimSpace(*in.DrugGroup)
	}
	if in.Drug != nil {
		a.Drug = strings.TrimSpace(*in.Drug)
	}
	if in.ExcelRowID != nil {
		rowID, err := oid.Parse(*in.ExcelRowID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		a.ExcelRowID = &rowID
	}
	if in.QtyAcknowledged != nil {
		a.QtyAcknowledged = *in.QtyAcknowledged
	}
	if in.QtyReceived != nil {
		a.QtyReceived = *in.QtyReceived
	}
	if in.QtyMissing != nil {
		a.QtyMissing = *in.QtyMissing
	}
	if in.QtyDamaged != nil {
		a.QtyDamaged = *in.QtyDamaged
	}
	if err := validateQuantities(a); err != nil {
		return nil, err
	}
	if in.AcknowledgedAt != nil {
		t, err := time.Parse(time.RFC3339, *in.AcknowledgedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid acknowledgedAt: %v", ErrInvalid, err)
		}
		a.AcknowledgedAt = t
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, *in.Status)
		}
		a.Status = *in.Status
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id oid.ID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Acknowledgment, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
