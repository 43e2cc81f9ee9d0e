package query

import "math"

// maxOffset bounds the computed offset so huge page numbers can't overflow.
const maxOffset = math.MaxInt32

// Window defines a view on the resulting payload.
type Window struct {
	// Offset is the 0 based index of the item in the result set to start the
	// window at.
	Offset int

	// Limit is the maximum number of items to return in the result set.
	Limit int
}

// Page creates a Window using pagination. Pages start at 1. A nil window is
// returned when perPage is not positive.
func Page(page, perPage int) *Window {
	if perPage <= 0 {
		return nil
	}
	if page < 1 {
		page = 1
	}
	if page-1 > maxOffset/perPage {
		page = maxOffset/perPage + 1
	}
	return &Window{
		Offset: (page - 1) * perPage,
		Limit:  perPage,
	}
}

// Paginate compiles skip and take from the page and limit parameters. A limit
// of "all" requests the whole result set. Missing or invalid values fall back
// to page 1 and the configured default limit.
func (c *Compiler) Paginate() {
	c.query.Skip, c.query.Take = nil, nil
	w := c.window()
	if w == nil {
		return
	}
	skip, take := w.Offset, w.Limit
	c.query.Skip = &skip
	c.query.Take = &take
}

func (c *Compiler) window() *Window {
	limit := c.conf.DefaultLimit
	if v, found := c.values.Get("limit"); found {
		if s, ok := v.(string); ok && s == "all" {
			return nil
		}
		if l, ok := intValue(v); ok && l > 0 {
			limit = l
		}
	}
	if c.conf.MaxLimit > 0 && limit > c.conf.MaxLimit {
		limit = c.conf.MaxLimit
	}
	page := 1
	if v, found := c.values.Get("page"); found {
		if p, ok := intValue(v); ok && p > 0 {
			page = p
		}
	}
	return Page(page, limit)
}
