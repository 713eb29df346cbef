package target

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// PageSize is the unit Cached fetches from the underlying memory.
const PageSize = 4096

// Cached keeps recently read pages of an underlying memory. It is only correct
// while the target stays paused, Purge it whenever the target may have run.
type Cached struct {
	mem   Memory
	pages *lru.Cache[Address, []byte]
}

// NewCached wraps mem with a cache holding up to size pages.
func NewCached(mem Memory, size int) (*Cached, error) {
	pages, err := lru.New[Address, []byte](size)
	if err != nil {
		return nil, errors.Wrap(err, "page cache")
	}
	return &Cached{mem: mem, pages: pages}, nil
}

// ReadAt implements Memory. A read that spans an unreadable page is passed to the
// underlying memory unchanged so partial mappings still work.
func (c *Cached) ReadAt(p []byte, addr Address) error {
	start := addr.Align(PageSize)
	end := addr.Add(int64(len(p)))
	for page := start; page < end; page = page.Add(PageSize) {
		data, err := c.page(page)
		if err != nil {
			return c.mem.ReadAt(p, addr)
		}
		lo := max(addr, page)
		hi := min(end, page.Add(PageSize))
		copy(p[lo.Sub(addr):hi.Sub(addr)], data[lo.Sub(page):hi.Sub(page)])
	}
	return nil
}

func (c *Cached) page(addr Address) ([]byte, error) {
	if data, ok := c.pages.Get(addr); ok {
		return data, nil
	}
	data := make([]byte, PageSize)
	if err := c.mem.ReadAt(data, addr); err != nil {
		return nil, err
	}
	c.pages.Add(addr, data)
	return data, nil
}

// Purge drops every cached page.
func (c *Cached) Purge() {
	c.pages.Purge()
}

// Len returns the number of cached pages.
func (c *Cached) Len() int {
	return c.pages.Len()
}
