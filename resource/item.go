package resource

// Item represents an instance of an item.
type Item struct {
	// ID is used to uniquely identify the item in the resource collection.
	ID interface{}
	// Payload the actual data of the item, restricted to the projection of
	// the query which fetched it.
	Payload map[string]interface{}
}

// ItemList represents a list of items.
type ItemList struct {
	// Total defines the total number of items in the collection matching the
	// query where clause, regardless of skip and take. If the storage handler
	// cannot compute this value, -1 is set.
	Total int
	// Offset is the index of the first item of the list in the global
	// collection.
	Offset int
	// Limit is the max number of items requested, 0 when the whole result
	// set was requested.
	Limit int
	// Items is the list of items contained in the current page.
	Items []*Item
}

// NewItem creates a new item from a payload. The id field of the payload, if
// any, is used as the item ID.
func NewItem(payload map[string]interface{}) *Item {
	return &Item{
		ID:      payload["id"],
		Payload: payload,
	}
}
