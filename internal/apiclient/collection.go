package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies which form a list endpoint answered with.
type Shape int

const (
	ShapeList Shape = iota
	ShapePage
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapePage:
		return "page"
	case ShapeSingle:
		return "single"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Collection is a normalized list response. Items is always usable; Shape
// and the paging fields record what the backend actually sent.
type Collection[T any] struct {
	Shape    Shape
	Items    []T
	Count    int
	Next     string
	Previous string
}

type page[T any] struct {
	Count    *int            `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

// DecodeCollection resolves a bare array, a {"results": [...]} page or a
// single object into one Collection. null and empty bodies decode to an
// empty list.
func DecodeCollection[T any](raw []byte) (Collection[T], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Collection[T]{Shape: ShapeList, Items: []T{}}, nil
	}
	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Collection[T]{}, fmt.Errorf("apiclient: decode list: %w", err)
		}
		if items == nil {
			items = []T{}
		}
		return Collection[T]{Shape: ShapeList, Items: items, Count: len(items)}, nil
	case '{':
		var p page[T]
		if err := json.Unmarshal(trimmed, &p); err == nil && isArray(p.Results) {
			var items []T
			if err := json.Unmarshal(p.Results, &items); err != nil {
				return Collection[T]{}, fmt.Errorf("apiclient: decode page: %w", err)
			}
			if items == nil {
				items = []T{}
			}
			c := Collection[T]{Shape: ShapePage, Items: items, Count: len(items)}
			if p.Count != nil {
				c.Count = *p.Count
			}
			if p.Next != nil {
				c.Next = *p.Next
			}
			if p.Previous != nil {
				c.Previous = *p.Previous
			}
			return c, nil
		}
		var single T
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return Collection[T]{}, fmt.Errorf("apiclient: decode object: %w", err)
		}
		return Collection[T]{Shape: ShapeSingle, Items: []T{single}, Count: 1}, nil
	}
	return Collection[T]{}, fmt.Errorf("apiclient: unexpected collection payload %q", truncate(string(trimmed), 40))
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
