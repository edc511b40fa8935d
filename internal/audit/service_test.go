package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubAuditRepo struct {
	entries     []Entry
	lastFilters Filters
	lastLimit   int
	lastOffset  int
	calls       int
}

func (s *stubAuditRepo) Query(ctx context.Context, f Filters, limit, offset int) ([]Entry, error) {
	s.lastFilters = f
	s.lastLimit = limit
	s.lastOffset = offset
	s.calls++
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func mockEntries(n int) []Entry {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			UserID:         7,
			CapabilityCode: "informes.exportar",
			Action:         ActionAccessGranted,
			Outcome:        OutcomeSuccess,
			OccurredAt:     base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return entries
}

func TestTrailPaging(t *testing.T) {
	repo := &stubAuditRepo{entries: mockEntries(5)}
	svc := NewService(repo)

	result, err := svc.Trail(context.Background(), Filters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected next page")
	}
	if result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %d", result.Paging.NextPage)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit+1 query, got limit %d", repo.lastLimit)
	}
}

func TestTrailLastPage(t *testing.T) {
	repo := &stubAuditRepo{entries: mockEntries(3)}
	svc := NewService(repo)

	result, err := svc.Trail(context.Background(), Filters{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.Entries))
	}
	if result.Paging.HasNext {
		t.Fatalf("did not expect next page")
	}
	if result.Paging.PrevPage != 1 {
		t.Fatalf("expected prev page 1, got %d", result.Paging.PrevPage)
	}
}

func TestTrailClampsPageSize(t *testing.T) {
	repo := &stubAuditRepo{}
	svc := NewService(repo)

	if _, err := svc.Trail(context.Background(), Filters{PageSize: 500}); err != nil {
		t.Fatalf("trail: %v", err)
	}
	if repo.lastLimit != 101 {
		t.Fatalf("expected clamped limit 101, got %d", repo.lastLimit)
	}
}

func TestExportDrainsAllBatches(t *testing.T) {
	repo := &stubAuditRepo{entries: mockEntries(1500)}
	svc := NewService(repo)

	entries, err := svc.Export(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(entries) != 1500 {
		t.Fatalf("expected 1500 entries, got %d", len(entries))
	}
	if repo.calls != 2 {
		t.Fatalf("expected 2 batch queries, got %d", repo.calls)
	}
}

func TestWriteCSV(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, mockEntries(1)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "informes.exportar") {
		t.Fatalf("csv missing capability code: %q", out)
	}
	if !strings.Contains(out, string(ActionAccessGranted)) {
		t.Fatalf("csv missing action: %q", out)
	}
}
