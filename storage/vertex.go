package storage

import (
	"fmt"
	"slices"
)

// edgeRef is the adjacency entry a vertex keeps for one incident edge.
type edgeRef struct {
	edge     *Edge
	other    *Vertex
	edgeType EdgeTypeId
}

// vertexData is the versioned payload of a vertex: its labels, properties
// and adjacency lists. Full copies of it live in the version chain.
type vertexData struct {
	labels     []LabelId
	properties map[PropertyId]PropertyValue
	outEdges   []edgeRef
	inEdges    []edgeRef
}

func (d vertexData) clone() vertexData {
	out := vertexData{
		labels:     slices.Clone(d.labels),
		properties: make(map[PropertyId]PropertyValue, len(d.properties)),
		outEdges:   slices.Clone(d.outEdges),
		inEdges:    slices.Clone(d.inEdges),
	}
	for k, v := range d.properties {
		out.properties[k] = v.clone()
	}
	return out
}

// Vertex is the stable identity of a vertex record: its gid plus the version
// chain holding its states. Pointers to it are shared by indexes and
// adjacency lists for the record's whole lifetime.
type Vertex struct {
	gid   Gid
	chain *VersionChain[vertexData]
}

// Gid returns the vertex's globally unique id.
func (v *Vertex) Gid() Gid {
	return v.gid
}

// VertexAccessor binds a vertex to a transaction. All reads and writes on a
// vertex go through an accessor.
type VertexAccessor struct {
	vertex  *Vertex
	tx      *Transaction
	storage *Storage
}

// Gid returns the vertex's globally unique id.
func (va *VertexAccessor) Gid() Gid {
	return va.vertex.gid
}

func (va *VertexAccessor) visible(view View) (*version[vertexData], error) {
	v, ok := va.vertex.chain.Visible(va.tx, view)
	if !ok {
		return nil, ErrDeletedObject
	}
	return v, nil
}

func (va *VertexAccessor) update() (*vertexData, error) {
	return va.vertex.chain.Update(va.tx, vertexData.clone, va.storage.lockTimeout)
}

// AddLabel attaches a label to the vertex and reports whether it was newly
// added. Index entries for the label and for every indexed property present
// on the vertex are written immediately.
func (va *VertexAccessor) AddLabel(label LabelId) (bool, error) {
	data, err := va.update()
	if err != nil {
		return false, fmt.Errorf("add label %d: %w", label, err)
	}
	if slices.Contains(data.labels, label) {
		return false, nil
	}
	data.labels = append(data.labels, label)

	va.storage.labelIndex.add(label, va.vertex, va.tx.id)
	for prop, value := range data.properties {
		va.storage.labelPropertyIndex.add(IndexKey{Label: label, Property: prop}, value, va.vertex, va.tx.id)
	}
	return true, nil
}

// RemoveLabel detaches a label and reports whether it was present. Index
// entries are not removed; scans filter them against current state and the
// garbage collector reclaims them.
func (va *VertexAccessor) RemoveLabel(label LabelId) (bool, error) {
	data, err := va.update()
	if err != nil {
		return false, fmt.Errorf("remove label %d: %w", label, err)
	}
	i := slices.Index(data.labels, label)
	if i < 0 {
		return false, nil
	}
	data.labels = slices.Delete(data.labels, i, i+1)
	return true, nil
}

// HasLabel reports whether the vertex carries the label in the given view.
func (va *VertexAccessor) HasLabel(label LabelId, view View) (bool, error) {
	v, err := va.visible(view)
	if err != nil {
		return false, err
	}
	return slices.Contains(v.data.labels, label), nil
}

// Labels returns the labels in the given view.
func (va *VertexAccessor) Labels(view View) ([]LabelId, error) {
	v, err := va.visible(view)
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.data.labels), nil
}

// SetProperty sets a property to value, with null clearing it, and returns
// the previous value. Index entries for every indexed (label, property) pair
// touching this property are written immediately.
func (va *VertexAccessor) SetProperty(prop PropertyId, value PropertyValue) (PropertyValue, error) {
	data, err := va.update()
	if err != nil {
		return NullValue(), fmt.Errorf("set property %d: %w", prop, err)
	}
	old, had := data.properties[prop]
	if !had {
		old = NullValue()
	}
	if value.IsNull() {
		delete(data.properties, prop)
	} else {
		data.properties[prop] = value.clone()
		for _, label := range data.labels {
			va.storage.labelPropertyIndex.add(IndexKey{Label: label, Property: prop}, value, va.vertex, va.tx.id)
		}
	}
	return old, nil
}

// GetProperty returns the property's value in the given view, null when the
// property is absent.
func (va *VertexAccessor) GetProperty(prop PropertyId, view View) (PropertyValue, error) {
	v, err := va.visible(view)
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
func (va *VertexAccessor) Properties(view View) (map[PropertyId]PropertyValue, error) {
	v, err := va.visible(view)
	if err != nil {
		return nil, err
	}
	out := make(map[PropertyId]PropertyValue, len(v.data.properties))
	for k, val := range v.data.properties {
		out[k] = val
	}
	return out, nil
}

// edgeAccessors converts adjacency refs to accessors, optionally restricted
// to a set of edge types and to a single vertex on the other endpoint.
func (va *VertexAccessor) edgeAccessors(refs []edgeRef, types []EdgeTypeId, other *Vertex) []*EdgeAccessor {
	out := make([]*EdgeAccessor, 0, len(refs))
	for _, ref := range refs {
		if len(types) > 0 && !slices.Contains(types, ref.edgeType) {
			continue
		}
		if other != nil && ref.other != other {
			continue
		}
		out = append(out, &EdgeAccessor{edge: ref.edge, tx: va.tx, storage: va.storage})
	}
	return out
}

// OutEdges returns accessors for the outgoing edges in the given view. A
// non-empty types slice restricts the result to those edge types; a non-nil
// dst restricts it to edges pointing at that vertex.
func (va *VertexAccessor) OutEdges(view View, types []EdgeTypeId, dst *VertexAccessor) ([]*EdgeAccessor, error) {
	v, err := va.visible(view)
	if err != nil {
		return nil, err
	}
	var other *Vertex
	if dst != nil {
		other = dst.vertex
	}
	return va.edgeAccessors(v.data.outEdges, types, other), nil
}

// InEdges returns accessors for the incoming edges in the given view. A
// non-empty types slice restricts the result to those edge types; a non-nil
// src restricts it to edges originating at that vertex.
func (va *VertexAccessor) InEdges(view View, types []EdgeTypeId, src *VertexAccessor) ([]*EdgeAccessor, error) {
	v, err := va.visible(view)
	if err != nil {
		return nil, err
	}
	var other *Vertex
	if src != nil {
		other = src.vertex
	}
	return va.edgeAccessors(v.data.inEdges, types, other), nil
}

// Degree returns the number of incident edges in the given view.
func (va *VertexAccessor) Degree(view View) (int, error) {
	v, err := va.visible(view)
	if err != nil {
		return 0, err
	}
	return len(v.data.outEdges) + len(v.data.inEdges), nil
}
