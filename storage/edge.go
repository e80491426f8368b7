package storage

import (
	"fmt"
)

// edgeData is the versioned payload of an edge: just its properties. The
// endpoints and type are immutable and live on the Edge itself.
type edgeData struct {
	properties map[PropertyId]PropertyValue
}

func (d edgeData) clone() edgeData {
	out := edgeData{properties: make(map[PropertyId]PropertyValue, len(d.properties))}
	for k, v := range d.properties {
		out.properties[k] = v.clone()
	}
	return out
}

// Edge is the stable identity of an edge record: its gid, endpoints, type
// and the version chain holding its property states.
type Edge struct {
	gid      Gid
	from     *Vertex
	to       *Vertex
	edgeType EdgeTypeId
	chain    *VersionChain[edgeData]
}

// Gid returns the edge's globally unique id.
func (e *Edge) Gid() Gid {
	return e.gid
}

// EdgeAccessor binds an edge to a transaction.
type EdgeAccessor struct {
	edge    *Edge
	tx      *Transaction
	storage *Storage
}

// Gid returns the edge's globally unique id.
func (ea *EdgeAccessor) Gid() Gid {
	return ea.edge.gid
}

// EdgeType returns the edge's type id.
func (ea *EdgeAccessor) EdgeType() EdgeTypeId {
	return ea.edge.edgeType
}

// From returns an accessor for the edge's source vertex.
func (ea *EdgeAccessor) From() *VertexAccessor {
	return &VertexAccessor{vertex: ea.edge.from, tx: ea.tx, storage: ea.storage}
}

// To returns an accessor for the edge's destination vertex.
func (ea *EdgeAccessor) To() *VertexAccessor {
	return &VertexAccessor{vertex: ea.edge.to, tx: ea.tx, storage: ea.storage}
}

func (ea *EdgeAccessor) visible(view View) (*version[edgeData], error) {
	v, ok := ea.edge.chain.Visible(ea.tx, view)
	if !ok {
		return nil, ErrDeletedObject
	}
	return v, nil
}

// SetProperty sets a property to value, with null clearing it, and returns
// the previous value.
func (ea *EdgeAccessor) SetProperty(prop PropertyId, value PropertyValue) (PropertyValue, error) {
	data, err := ea.edge.chain.Update(ea.tx, edgeData.clone, ea.storage.lockTimeout)
	if err != nil {
		return NullValue(), fmt.Errorf("set edge property %d: %w", prop, err)
	}
	old, had := data.properties[prop]
	if !had {
		old = NullValue()
	}
	if value.IsNull() {
		delete(data.properties, prop)
	} else {
		data.properties[prop] = value.clone()
	}
	return old, nil
}

// GetProperty returns the property's value in the given view, null when the
// property is absent.
func (ea *EdgeAccessor) GetProperty(prop PropertyId, view View) (PropertyValue, error) {
	v, err := ea.visible(view)
	if err != nil {
		return NullValue(), err
	}
	value, ok := v.data.properties[prop]
	if !ok {
		return NullValue(), nil
	}
	return value, nil
}

// Properties returns a copy of all properties in the given view.
func (ea *EdgeAccessor) Properties(view View) (map[PropertyId]PropertyValue, error) {
	v, err := ea.visible(view)
	if err != nil {
		return nil, err
	}
	out := make(map[PropertyId]PropertyValue, len(v.data.properties))
	for k, val := range v.data.properties {
		out[k] = val
	}
	return out, nil
}
