package pager

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/relicdb/relic/internal/common"
)

func mustOpenPager(t *testing.T) *Pager {
	t.Helper()
	p, err := Open(filepath.Join(t.TempDir(), "pages.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPagerAllocateReadWriteRoundTrip(t *testing.T) {
	p := mustOpenPager(t)

	id, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if id != 0 {
		t.Fatalf("AllocatePage: got %d, want 0", id)
	}

	buf := make([]byte, PageSize)
	buf[0] = 0xAB
	if err := p.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := p.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got[0] != 0xAB {
		t.Fatalf("ReadPage: got %v, want first byte 0xAB", got[0])
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	p := mustOpenPager(t)

	_, err := p.ReadPage(0)
	if !errors.Is(err, common.ErrOutOfRange) {
		t.Fatalf("ReadPage: want ErrOutOfRange, got %v", err)
	}
}

func TestWritePageOutOfRange(t *testing.T) {
	p := mustOpenPager(t)

	err := p.WritePage(5, make([]byte, PageSize))
	if !errors.Is(err, common.ErrOutOfRange) {
		t.Fatalf("WritePage: want ErrOutOfRange, got %v", err)
	}
}

func TestWritePageSizeMismatch(t *testing.T) {
	p := mustOpenPager(t)

	err := p.WritePage(0, make([]byte, PageSize-1))
	if !errors.Is(err, common.ErrSizeMismatch) {
		t.Fatalf("WritePage: want ErrSizeMismatch, got %v", err)
	}
}

func TestWritePageAppendsSequentially(t *testing.T) {
	p := mustOpenPager(t)

	if err := p.WritePage(0, make([]byte, PageSize)); err != nil {
		t.Fatalf("WritePage(0): %v", err)
	}
	if err := p.WritePage(1, make([]byte, PageSize)); err != nil {
		t.Fatalf("WritePage(1): %v", err)
	}
	if p.NumPages() != 2 {
		t.Fatalf("NumPages: got %d, want 2", p.NumPages())
	}
}
