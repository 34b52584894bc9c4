package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is the store-assigned identifier of an Item. Backends hand out either
// integers (table serials) or opaque strings; both are kept as text here.
type ID string

func (id ID) String() string { return string(id) }

// numeric reports whether id is a canonical base-10 integer.
func (id ID) numeric() bool {
	s := string(id)
	if s == "" || len(s) > 18 {
		return false
	}
	if s[0] == '0' && len(s) > 1 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MarshalJSON writes integer ids as JSON numbers so rows round-trip with
// serial-keyed tables.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalYAML mirrors MarshalJSON: integer ids are written unquoted.
func (id ID) MarshalYAML() (any, error) {
	if id.numeric() {
		n, err := strconv.ParseInt(string(id), 10, 64)
		if err == nil {
			return n, nil
		}
	}
	return string(id), nil
}

// Item is the domain model for a todo entry, mirrored from the remote table.
type Item struct {
	ID          ID     `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	IsCompleted bool   `json:"isCompleted" yaml:"isCompleted"`
}

// NewItem is an Item before the store has assigned it an id.
type NewItem struct {
	Name        string `json:"name"`
	IsCompleted bool   `json:"isCompleted"`
}

// Patch holds the fields an update may change. Nil fields are left alone.
type Patch struct {
	IsCompleted *bool `json:"isCompleted,omitempty"`
}

// Completed returns a patch setting the completion flag.
func Completed(v bool) Patch { return Patch{IsCompleted: &v} }

// Apply returns it with the patch fields written over it.
func (p Patch) Apply(it Item) Item {
	if p.IsCompleted != nil {
		it.IsCompleted = *p.IsCompleted
	}
	return it
}

// Stats counts done and pending items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.IsCompleted {
			done++
		} else {
			pending++
		}
	}
	return
}
