package world

import (
	"encoding/json"
	"fmt"
	"time"
)

// RootID is the ancestor of every object; it is the only object allowed to
// have no parents.
const RootID = "#object"

// Object is a node in the world graph. Behavior lives entirely in its
// attribute map; parentage makes it a type, a "run" attribute makes it a
// function, and nothing in the engine ever switches on kind.
type Object struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	ParentIDs   []string          `json:"parentIds,omitempty"`
	Attributes  map[string]Value  `json:"-"`
	LocationID  string            `json:"locationId,omitempty"`
	ContentIDs  []string          `json:"contentIds,omitempty"`
	OwnerID     string            `json:"ownerId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitzero"`
	UpdatedAt   time.Time         `json:"updatedAt,omitzero"`
}

// NewObject creates an object with the given ID and parents.
func NewObject(id string, parents ...string) *Object {
	now := time.Now().UTC()
	return &Object{
		ID:         id,
		ParentIDs:  parents,
		Attributes: make(map[string]Value),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy. The cache hands out snapshots so readers never
// observe a concurrent mutation.
func (o *Object) Clone() *Object {
	cp := *o
	cp.ParentIDs = append([]string(nil), o.ParentIDs...)
	cp.ContentIDs = append([]string(nil), o.ContentIDs...)
	cp.Attributes = make(map[string]Value, len(o.Attributes))
	for k, v := range o.Attributes {
		cp.Attributes[k] = CloneValue(v)
	}
	return &cp
}

// GetOwn returns the object's own attribute, ignoring inheritance.
// The second return distinguishes an absent attribute from a stored null.
// Name and description read as attributes unless shadowed by the map.
func (o *Object) GetOwn(name string) (Value, bool) {
	if v, ok := o.Attributes[name]; ok {
		return v, true
	}
	switch name {
	case "name":
		if o.Name != "" {
			return o.Name, true
		}
	case "description":
		if o.Description != "" {
			return o.Description, true
		}
	}
	return nil, false
}

// SetAttr writes an attribute on this object and bumps UpdatedAt.
func (o *Object) SetAttr(name string, v Value) {
	if o.Attributes == nil {
		o.Attributes = make(map[string]Value)
	}
	o.Attributes[name] = v
	o.UpdatedAt = time.Now().UTC()
}

// objectDoc is the persisted JSON shape of an Object; attribute values go
// through MarshalValue so refs and maps keep their tags.
type objectDoc struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name,omitempty"`
	Description string                     `json:"description,omitempty"`
	ParentIDs   []string                   `json:"parentIds,omitempty"`
	Attributes  map[string]json.RawMessage `json:"attributes,omitempty"`
	LocationID  string                     `json:"locationId,omitempty"`
	ContentIDs  []string                   `json:"contentIds,omitempty"`
	OwnerID     string                     `json:"ownerId,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt,omitzero"`
	UpdatedAt   time.Time                  `json:"updatedAt,omitzero"`
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	doc := objectDoc{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		ParentIDs:   o.ParentIDs,
		LocationID:  o.LocationID,
		ContentIDs:  o.ContentIDs,
		OwnerID:     o.OwnerID,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if len(o.Attributes) > 0 {
		doc.Attributes = make(map[string]json.RawMessage, len(o.Attributes))
		for k, v := range o.Attributes {
			enc, err := MarshalValue(v)
			if err != nil {
				return nil, fmt.Errorf("world: encode attribute %q of %s: %w", k, o.ID, err)
			}
			doc.Attributes[k] = enc
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Object) UnmarshalJSON(data []byte) error {
	var doc objectDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("world: decode object: %w", err)
	}
	o.ID = doc.ID
	o.Name = doc.Name
	o.Description = doc.Description
	o.ParentIDs = doc.ParentIDs
	o.LocationID = doc.LocationID
	o.ContentIDs = doc.ContentIDs
	o.OwnerID = doc.OwnerID
	o.CreatedAt = doc.CreatedAt
	o.UpdatedAt = doc.UpdatedAt
	o.Attributes = make(map[string]Value, len(doc.Attributes))
	for k, raw := range doc.Attributes {
		v, err := UnmarshalValue(raw)
		if err != nil {
			return fmt.Errorf("world: attribute %q of %s: %w", k, doc.ID, err)
		}
		o.Attributes[k] = v
	}
	return nil
}
