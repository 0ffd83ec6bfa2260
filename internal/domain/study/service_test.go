package study

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trialdesk/trialdesk/pkg/oid"
)

// ── Mock Repository ──

type mockRepo struct {
	data map[oid.ID]*Study
}

func newMockRepo() *mockRepo {
	return &mockRepo{data: make(map[oid.ID]*Study)}
}

func (m *mockRepo) Create(_ context.Context, s *Study) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id oid.ID) (*Study, error) {
	if s, ok := m.data[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []oid.ID) ([]*Study, error) {
	var out []*Study
	for _, id := range ids {
		if s, ok := m.data[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, s *Study) error {
	if _, ok := m.data[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	s.UpdatedAt = time.Now()
	cp := *s
	m.data[s.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id oid.ID) error {
	if _, ok := m.data[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.data, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Study, int, error) {
	var all []*Study
	for _, s := range m.data {
		if f.Search != "" {
			proto := ""
			if s.ProtocolNumber != nil {
				proto = *s.ProtocolNumber
			}
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(s.Name), q) &&
				!strings.Contains(strings.ToLower(proto), q) {
				continue
			}
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) All(_ context.Context) ([]*Study, error) {
	var out []*Study
	for _, s := range m.data {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepo) ExistingIDs(_ context.Context, ids []oid.ID) (map[oid.ID]bool, error) {
	found := make(map[oid.ID]bool)
	for _, id := range ids {
		if _, ok := m.data[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (m *mockRepo) ExistsByProtocol(_ context.Context, protocol string, exclude oid.ID) (bool, error) {
	for _, s := range m.data {
		if s.ID == exclude || s.ProtocolNumber == nil {
			continue
		}
		if strings.EqualFold(*s.ProtocolNumber, protocol) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Stats(_ context.Context) (*Stats, error) {
	st := &Stats{Total: len(m.data)}
	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	for _, s := range m.data {
		if s.CreatedAt.After(cutoff) {
			st.Recent++
		}
		if s.ProtocolNumber != nil {
			st.WithProtocol++
		} else {
			st.WithoutProtocol++
		}
	}
	return st, nil
}

func strptr(s string) *string { return &s }

// ── Tests ──

func TestService_Create(t *testing.T) {
	svc := NewService(newMockRepo())
	st, err := svc.Create(context.Background(), CreateInput{Name: "  Oncology Trial  ", ProtocolNumber: strptr("ONC-001")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Name != "Oncology Trial" {
		t.Errorf("expected trimmed name, got %q", st.Name)
	}
	if !st.ID.Valid() {
		t.Errorf("expected well-formed id, got %q", st.ID)
	}
	if st.ProtocolNumber == nil || *st.ProtocolNumber != "ONC-001" {
		t.Errorf("protocol number not persisted: %v", st.ProtocolNumber)
	}
}

func TestService_Create_EmptyName(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.Create(context.Background(), CreateInput{Name: "   "}); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestService_Create_DuplicateProtocolCaseInsensitive(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.Create(context.Background(), CreateInput{Name: "A", ProtocolNumber: strptr("ONC-001")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Create(context.Background(), CreateInput{Name: "B", ProtocolNumber: strptr("onc-001")})
	if err == nil {
		t.Fatal("expected duplicate protocol error")
	}
	if !strings.Contains(err.Error(), "already in use") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestService_Create_NoProtocol(t *testing.T) {
	svc := NewService(newMockRepo())
	st, err := svc.Create(context.Background(), CreateInput{Name: "No Protocol"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ProtocolNumber != nil {
		t.Errorf("expected nil protocol number, got %v", *st.ProtocolNumber)
	}
}

func TestService_Update_Partial(t *testing.T) {
	svc := NewService(newMockRepo())
	st, _ := svc.Create(context.Background(), CreateInput{Name: "Original", ProtocolNumber: strptr("P-1"), Title: strptr("Title")})

	got, err := svc.Update(context.Background(), st.ID, UpdateInput{Name: strptr("Renamed")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("name = %q", got.Name)
	}
	if got.ProtocolNumber == nil || *got.ProtocolNumber != "P-1" {
		t.Error("untouched protocol number was modified")
	}
	if got.Title == nil || *got.Title != "Title" {
		t.Error("untouched title was modified")
	}
}

func TestService_Update_DuplicateProtocolExcludesSelf(t *testing.T) {
	svc := NewService(newMockRepo())
	st, _ := svc.Create(context.Background(), CreateInput{Name: "A", ProtocolNumber: strptr("P-1")})

	// Re-submitting its own protocol number is not a conflict.
	if _, err := svc.Update(context.Background(), st.ID, UpdateInput{ProtocolNumber: strptr("P-1")}); err != nil {
		t.Errorf("self update should not conflict: %v", err)
	}

	svc.Create(context.Background(), CreateInput{Name: "B", ProtocolNumber: strptr("P-2")})
	if _, err := svc.Update(context.Background(), st.ID, UpdateInput{ProtocolNumber: strptr("p-2")}); err == nil {
		t.Error("expected conflict with another study's protocol")
	}
}

func TestService_Update_ClearProtocol(t *testing.T) {
	svc := NewService(newMockRepo())
	st, _ := svc.Create(context.Background(), CreateInput{Name: "A", ProtocolNumber: strptr("P-1")})
	got, err := svc.Update(context.Background(), st.ID, UpdateInput{ProtocolNumber: strptr("")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProtocolNumber != nil {
		t.Errorf("expected cleared protocol, got %v", *got.ProtocolNumber)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.Update(context.Background(), oid.New(), UpdateInput{Name: strptr("X")}); err == nil {
		t.Error("expected not found error")
	}
}

func TestService_Delete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	st, _ := svc.Create(context.Background(), CreateInput{Name: "A"})
	if err := svc.Delete(context.Background(), st.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), st.ID); err == nil {
		t.Error("expected not found after delete")
	}
	if err := svc.Delete(context.Background(), st.ID); err == nil {
		t.Error("expected error deleting twice")
	}
}

func TestService_List_Search(t *testing.T) {
	svc := NewService(newMockRepo())
	svc.Create(context.Background(), CreateInput{Name: "Cardiology Study", ProtocolNumber: strptr("CARD-9")})
	svc.Create(context.Background(), CreateInput{Name: "Oncology Study", ProtocolNumber: strptr("ONC-1")})

	items, total, err := svc.List(context.Background(), ListFilter{Search: "card"}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 match, got %d", total)
	}
	if items[0].Name != "Cardiology Study" {
		t.Errorf("wrong match: %s", items[0].Name)
	}
}

func TestService_List_PaginationReassembly(t *testing.T) {
	svc := NewService(newMockRepo())
	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		svc.Create(context.Background(), CreateInput{Name: n})
	}

	var seen []string
	for offset := 0; offset < len(names); offset += 2 {
		items, total, err := svc.List(context.Background(), ListFilter{}, 2, offset)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != len(names) {
			t.Fatalf("total = %d", total)
		}
		for _, s := range items {
			seen = append(seen, s.Name)
		}
	}
	if len(seen) != len(names) {
		t.Fatalf("reassembled %d of %d", len(seen), len(names))
	}
	sort.Strings(seen)
	for i, n := range names {
		if seen[i] != n {
			t.Errorf("missing or duplicated item at %d: %s", i, seen[i])
		}
	}
}

func TestService_Stats(t *testing.T) {
	svc := NewService(newMockRepo())
	svc.Create(context.Background(), CreateInput{Name: "A", ProtocolNumber: strptr("P-1")})
	svc.Create(context.Background(), CreateInput{Name: "B"})

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Total != 2 || st.WithProtocol != 1 || st.WithoutProtocol != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Recent != 2 {
		t.Errorf("expected both studies in 30-day window, got %d", st.Recent)
	}
}
