package shared_test

import (
	"testing"

	"github.com/warden-admin/warden/internal/shared"
	_ "github.com/warden-admin/warden/testing"
)

func TestPaginationMetadata(t *testing.T) {
	p := shared.NewPagination(2, 8, 17)

	if p.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.TotalPages)
	}
	if p.Offset() != 8 {
		t.Fatalf("expected offset 8, got %d", p.Offset())
	}
	if !p.HasPrev() || !p.HasNext() {
		t.Fatalf("expected middle page to have neighbors")
	}
	if p.PrevPage() != 1 || p.NextPage() != 3 {
		t.Fatalf("unexpected neighbors: prev=%d next=%d", p.PrevPage(), p.NextPage())
	}
}

func TestPaginationDefaults(t *testing.T) {
	p := shared.NewPagination(0, 0, 17)

	if p.Page != 1 {
		t.Fatalf("expected page clamped to 1, got %d", p.Page)
	}
	if p.PerPage != 8 {
		t.Fatalf("expected default page size 8, got %d", p.PerPage)
	}
}

func TestPaginationEdges(t *testing.T) {
	first := shared.NewPagination(1, 8, 16)
	if first.HasPrev() {
		t.Fatalf("first page should have no previous")
	}
	if first.PrevPage() != 1 {
		t.Fatalf("prev of first page should clamp to 1")
	}

	last := shared.NewPagination(2, 8, 16)
	if last.HasNext() {
		t.Fatalf("last page should have no next")
	}
	if last.NextPage() != 2 {
		t.Fatalf("next of last page should clamp to last")
	}

	empty := shared.NewPagination(1, 8, 0)
	if empty.TotalPages != 0 {
		t.Fatalf("empty result should have 0 pages, got %d", empty.TotalPages)
	}
	if empty.HasNext() {
		t.Fatalf("empty result should have no next page")
	}
}
