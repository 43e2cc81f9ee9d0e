// Package mem is an example storage handler executing compiled queries
// against items stored in memory.
//
// Items are plain payloads. Relations are embedded: a to-one relation is a
// nested map and a to-many relation a list of maps. Relation filters (is,
// some, every, none...), nested orderBy and nested projections operate on
// those embedded payloads. By default only the scalar fields of an item are
// returned; relations must be selected or included.
package mem

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema/query"
)

// MemoryHandler is an example handler storing data in memory.
type MemoryHandler struct {
	sync.RWMutex
	// If latency is set, the handler will introduce an artificial latency on
	// all operations.
	Latency time.Duration
	items   map[interface{}]map[string]interface{}
	ids     []interface{}
}

// NewHandler creates an empty memory handler.
func NewHandler() *MemoryHandler {
	return &MemoryHandler{
		items: map[interface{}]map[string]interface{}{},
		ids:   []interface{}{},
	}
}

// NewSlowHandler creates an empty memory handler with specified latency.
func NewSlowHandler(latency time.Duration) *MemoryHandler {
	h := NewHandler()
	h.Latency = latency
	return h
}

// Insert inserts new items in memory. A payload without id gets a generated
// one. If any of the ids is already stored, no item is inserted and
// resource.ErrConflict is returned.
func (m *MemoryHandler) Insert(ctx context.Context, payloads []map[string]interface{}) error {
	return handleWithLatency(m.Latency, ctx, func() error {
		m.Lock()
		defer m.Unlock()
		items := make([]map[string]interface{}, 0, len(payloads))
		seen := map[interface{}]bool{}
		for _, p := range payloads {
			item := make(map[string]interface{}, len(p)+1)
			for k, v := range p {
				item[k] = v
			}
			if item["id"] == nil {
				item["id"] = xid.New().String()
			}
			id := item["id"]
			if _, found := m.items[id]; found || seen[id] {
				return resource.ErrConflict
			}
			seen[id] = true
			items = append(items, item)
		}
		for _, item := range items {
			// Store ids in ordered slice for sorting.
			m.ids = append(m.ids, item["id"])
			m.items[item["id"]] = item
		}
		return nil
	})
}

// Len returns the number of stored items.
func (m *MemoryHandler) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.ids)
}

// Find implements resource.Storer interface.
func (m *MemoryHandler) Find(ctx context.Context, q *query.Query) (list *resource.ItemList, err error) {
	err = handleWithLatency(m.Latency, ctx, func() error {
		m.RLock()
		defer m.RUnlock()
		payloads := make([]map[string]interface{}, 0, len(m.ids))
		for _, id := range m.ids {
			payloads = append(payloads, m.items[id])
		}
		matched, err := filter(payloads, q.Where)
		if err != nil {
			return err
		}
		if err := sortPayloads(matched, q.OrderBy); err != nil {
			return err
		}
		total := len(matched)
		offset, limit := 0, 0
		if q.Skip != nil {
			offset = *q.Skip
		}
		if q.Take != nil {
			limit = *q.Take
		}
		page := window(matched, offset, limit)
		items := make([]*resource.Item, 0, len(page))
		for _, p := range page {
			payload, err := project(p, q.Select, q.Include, q.Omit)
			if err != nil {
				return err
			}
			items = append(items, &resource.Item{ID: p["id"], Payload: payload})
		}
		list = &resource.ItemList{Total: total, Offset: offset, Limit: limit, Items: items}
		return nil
	})
	return list, err
}

// window returns the payloads between offset and offset+limit. A zero limit
// means no limit.
func window(payloads []map[string]interface{}, offset, limit int) []map[string]interface{} {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(payloads) {
		return []map[string]interface{}{}
	}
	end := len(payloads)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return payloads[offset:end]
}

// handleWithLatency allows introduction of artificial latency while handling
// context cancellation. The method first waits for the given latency while
// monitoring ctx.Done. If context is canceled during the wait, the context
// error is returned. If latency passed, the handler is executed and its error
// output is returned.
func handleWithLatency(latency time.Duration, ctx context.Context, handler func() error) error {
	if latency == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return handler()
	}
	select {
	case <-ctx.Done():
		// Monitor context cancellation. Cancellation may happen if the client
		// closed the connection or if the configured request timeout has been
		// reached.
		return ctx.Err()
	case <-time.After(latency):
		// Wait for the given latency before executing the provided handler.
		return handler()
	}
}
