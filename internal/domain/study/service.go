package study

import (
	"context"
	"fmt"
	"strings"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// ErrInvalid wraps every validation failure so handlers can map it to a 400.
var ErrInvalid = fmt.Errorf("invalid input")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Study, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	st := &Study{
		ID:        oid.New(),
		Name:      name,
		Title:     in.Title,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	if in.ProtocolNumber != nil {
		protocol := strings.TrimSpace(*in.ProtocolNumber)
		if protocol != "" {
			taken, err := s.repo.ExistsByProtocol(ctx, protocol, "")
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("%w: protocol number %q is already in use", ErrInvalid, protocol)
			}
			st.ProtocolNumber = &protocol
		}
	}

	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, st.ID)
}

func (s *Service) Get(ctx context.Context, id oid.ID) (*Study, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, id oid.ID, in UpdateInput) (*Study, error) {
	st, err := s.repo.GetByID(ctx, id)
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
	if in.ProtocolNumber != nil {
		protocol := strings.TrimSpace(*in.ProtocolNumber)
		if protocol == "" {
			st.ProtocolNumber = nil
		} else {
			taken, err := s.repo.ExistsByProtocol(ctx, protocol, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, fmt.Errorf("%w: protocol number %q is already in use", ErrInvalid, protocol)
			}
			st.ProtocolNumber = &protocol
		}
	}
	if in.Title != nil {
		st.Title = in.Title
	}
	if in.StartDate != nil {
		st.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		st.EndDate = in.EndDate
	}

	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id oid.ID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Study, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
