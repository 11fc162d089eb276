package pager

import (
	"fmt"
	"os"
	"sync"

	"github.com/relicdb/relic/internal/common"
)

// Pager manages page-level I/O against one backing file. All higher layers
// — the slotted-page heap and the page-resident B+Tree — read and write
// pages exclusively through a Pager; no layer above this one ever calls
// os.File directly.
type Pager struct {
	mu       sync.RWMutex
	file     *os.File
	path     string
	numPages int64
	closed   bool
}

// Open opens (or creates) a page file at path. An existing file is expected
// to be an exact multiple of PageSize; a short trailing page does not make
// Open fail, but it is not counted by NumPages, so ReadPage reports it as
// out of range and the next WritePage or AllocatePage overwrites it.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}
	return &Pager{
		file:     f,
		path:     path,
		numPages: fi.Size() / PageSize,
	}, nil
}

// NumPages returns the current number of whole pages in the file.
func (p *Pager) NumPages() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.numPages
}

// ReadPage returns exactly PageSize bytes for id. A short read of a counted
// page (the file was truncated after Open) is zero-padded to PageSize; a
// partial trailing page seen at Open is not counted and reads as out of range.
func (p *Pager) ReadPage(id PageID) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, common.ErrClosed
	}
	if int64(id) >= p.numPages {
		return nil, fmt.Errorf("pager: read page %d: %w", id, common.ErrOutOfRange)
	}
	buf := make([]byte, PageSize)
	n, err := p.file.ReadAt(buf, int64(id)*PageSize)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	return buf, nil
}

// WritePage writes exactly PageSize bytes at id and flushes the write to
// the OS before returning. Gaps are forbidden: id may name an existing page
// or the next page to be appended (id == NumPages()), but nothing beyond
// that without going through AllocatePage first.
func (p *Pager) WritePage(id PageID, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("pager: write page %d: %w", id, common.ErrSizeMismatch)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return common.ErrClosed
	}
	if int64(id) > p.numPages {
		return fmt.Errorf("pager: write page %d: %w", id, common.ErrOutOfRange)
	}
	if _, err := p.file.WriteAt(buf, int64(id)*PageSize); err != nil {
		return fmt.Errorf("pager: write page %d: %w", id, err)
	}
	if int64(id) == p.numPages {
		p.numPages++
	}
	return p.file.Sync()
}

// AllocatePage appends one zero-filled page and returns its id.
func (p *Pager) AllocatePage() (PageID, error) {
	p.mu.Lock()
	id := PageID(p.numPages)
	p.mu.Unlock()

	if err := p.WritePage(id, make([]byte, PageSize)); err != nil {
		return 0, fmt.Errorf("pager: allocate page: %w", err)
	}
	return id, nil
}

// Sync flushes the backing file to the OS. WritePage already flushes after
// every write; Sync is exposed for callers (Database.Flush) that want an
// explicit, named checkpoint boundary.
func (p *Pager) Sync() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	return p.file.Sync()
}

// Close flushes and releases the backing file handle. Close is idempotent.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		return fmt.Errorf("pager: close %s: %w", p.path, err)
	}
	return p.file.Close()
}

// Path returns the backing file path.
func (p *Pager) Path() string { return p.path }
