package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVertexLabelOps(t *testing.T) {
	s := newTestStorage(t)
	label := s.Names().NameToLabel("person")

	acc := s.Access()
	defer acc.Abort()
	va, err := acc.CreateVertex()
	require.NoError(t, err)

	added, err := va.AddLabel(label)
	require.NoError(t, err)
	require.True(t, added)
	added, err = va.AddLabel(label)
	require.NoError(t, err)
	require.False(t, added)

	labels, err := va.Labels(ViewNew)
	require.NoError(t, err)
	require.Equal(t, []LabelId{label}, labels)

	removed, err := va.RemoveLabel(label)
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = va.RemoveLabel(label)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestVertexPropertyOps(t *testing.T) {
	s := newTestStorage(t)
	prop := s.Names().NameToProperty("age")

	acc := s.Access()
	defer acc.Abort()
	va, err := acc.CreateVertex()
	require.NoError(t, err)

	old, err := va.SetProperty(prop, IntValue(30))
	require.NoError(t, err)
	require.True(t, old.IsNull())

	value, err := va.GetProperty(prop, ViewNew)
	require.NoError(t, err)
	require.True(t, value.Equal(IntValue(30)))

	props, err := va.Properties(ViewNew)
	require.NoError(t, err)
	require.Len(t, props, 1)

	// Setting null clears the property.
	old, err = va.SetProperty(prop, NullValue())
	require.NoError(t, err)
	require.True(t, old.Equal(IntValue(30)))
	value, err = va.GetProperty(prop, ViewNew)
	require.NoError(t, err)
	require.True(t, value.IsNull())
}

func TestVertexPropertyViews(t *testing.T) {
	s := newTestStorage(t)
	prop := s.Names().NameToProperty("age")

	setup := s.Access()
	va, err := setup.CreateVertex()
	require.NoError(t, err)
	gid := va.Gid()
	_, err = va.SetProperty(prop, IntValue(1))
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	acc := s.Access()
	defer acc.Abort()
	va, err = acc.FindVertex(gid, ViewNew)
	require.NoError(t, err)
	_, err = va.SetProperty(prop, IntValue(2))
	require.NoError(t, err)

	value, err := va.GetProperty(prop, ViewOld)
	require.NoError(t, err)
	require.True(t, value.Equal(IntValue(1)))
	value, err = va.GetProperty(prop, ViewNew)
	require.NoError(t, err)
	require.True(t, value.Equal(IntValue(2)))

	require.NoError(t, acc.AdvanceCommand())
	value, err = va.GetProperty(prop, ViewOld)
	require.NoError(t, err)
	require.True(t, value.Equal(IntValue(2)))
}

func TestEdgesAndAdjacency(t *testing.T) {
	s := newTestStorage(t)
	knows := s.Names().NameToEdgeType("knows")
	likes := s.Names().NameToEdgeType("likes")

	acc := s.Access()
	defer acc.Abort()
	a, err := acc.CreateVertex()
	require.NoError(t, err)
	b, err := acc.CreateVertex()
	require.NoError(t, err)
	c, err := acc.CreateVertex()
	require.NoError(t, err)

	e1, err := acc.CreateEdge(a, b, knows)
	require.NoError(t, err)
	e2, err := acc.CreateEdge(a, b, likes)
	require.NoError(t, err)
	e3, err := acc.CreateEdge(a, c, knows)
	require.NoError(t, err)

	require.Equal(t, knows, e1.EdgeType())
	require.Equal(t, a.Gid(), e1.From().Gid())
	require.Equal(t, b.Gid(), e1.To().Gid())

	out, err := a.OutEdges(ViewNew, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, e1.Gid(), out[0].Gid())
	require.Equal(t, e2.Gid(), out[1].Gid())
	require.Equal(t, e3.Gid(), out[2].Gid())

	out, err = a.OutEdges(ViewNew, []EdgeTypeId{likes}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, e2.Gid(), out[0].Gid())

	out, err = a.OutEdges(ViewNew, nil, b)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, e1.Gid(), out[0].Gid())
	require.Equal(t, e2.Gid(), out[1].Gid())

	out, err = a.OutEdges(ViewNew, []EdgeTypeId{knows}, c)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, e3.Gid(), out[0].Gid())

	in, err := b.InEdges(ViewNew, []EdgeTypeId{knows}, nil)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, e1.Gid(), in[0].Gid())

	in, err = c.InEdges(ViewNew, nil, a)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, e3.Gid(), in[0].Gid())

	degree, err := a.Degree(ViewNew)
	require.NoError(t, err)
	require.Equal(t, 3, degree)
}

func TestSelfLoopEdge(t *testing.T) {
	s := newTestStorage(t)
	loops := s.Names().NameToEdgeType("loops")

	acc := s.Access()
	defer acc.Abort()
	v, err := acc.CreateVertex()
	require.NoError(t, err)
	e, err := acc.CreateEdge(v, v, loops)
	require.NoError(t, err)

	out, err := v.OutEdges(ViewNew, nil, nil)
	require.NoError(t, err)
	in, err := v.InEdges(ViewNew, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, in, 1)

	require.NoError(t, acc.DeleteEdge(e))
	degree, err := v.Degree(ViewNew)
	require.NoError(t, err)
	require.Zero(t, degree)
}

func TestEdgePropertyOps(t *testing.T) {
	s := newTestStorage(t)
	since := s.Names().NameToProperty("since")
	knows := s.Names().NameToEdgeType("knows")

	setup := s.Access()
	a, err := setup.CreateVertex()
	require.NoError(t, err)
	b, err := setup.CreateVertex()
	require.NoError(t, err)
	e, err := setup.CreateEdge(a, b, knows)
	require.NoError(t, err)
	_, err = e.SetProperty(since, IntValue(2020))
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	acc := s.Access()
	defer acc.Abort()
	ea, err := acc.FindEdge(e.Gid(), ViewNew)
	require.NoError(t, err)

	value, err := ea.GetProperty(since, ViewNew)
	require.NoError(t, err)
	require.True(t, value.Equal(IntValue(2020)))

	old, err := ea.SetProperty(since, NullValue())
	require.NoError(t, err)
	require.True(t, old.Equal(IntValue(2020)))
	props, err := ea.Properties(ViewNew)
	require.NoError(t, err)
	require.Empty(t, props)
}

func TestDeleteVertexWithEdgesFails(t *testing.T) {
	s := newTestStorage(t)
	knows := s.Names().NameToEdgeType("knows")

	acc := s.Access()
	defer acc.Abort()
	a, err := acc.CreateVertex()
	require.NoError(t, err)
	b, err := acc.CreateVertex()
	require.NoError(t, err)
	e, err := acc.CreateEdge(a, b, knows)
	require.NoError(t, err)

	require.ErrorIs(t, acc.DeleteVertex(a), ErrVertexHasEdges)
	require.ErrorIs(t, acc.DeleteVertex(b), ErrVertexHasEdges)

	require.NoError(t, acc.DeleteEdge(e))
	require.NoError(t, acc.DeleteVertex(a))
	require.NoError(t, acc.DeleteVertex(b))
}

func TestDetachDeleteVertex(t *testing.T) {
	s := newTestStorage(t)
	knows := s.Names().NameToEdgeType("knows")

	setup := s.Access()
	a, err := setup.CreateVertex()
	require.NoError(t, err)
	b, err := setup.CreateVertex()
	require.NoError(t, err)
	c, err := setup.CreateVertex()
	require.NoError(t, err)
	_, err = setup.CreateEdge(a, b, knows)
	require.NoError(t, err)
	_, err = setup.CreateEdge(c, a, knows)
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	acc := s.Access()
	va, err := acc.FindVertex(a.Gid(), ViewNew)
	require.NoError(t, err)
	require.NoError(t, acc.DetachDeleteVertex(va))
	require.NoError(t, acc.Commit())

	reader := s.Access()
	defer reader.Abort()
	_, err = reader.FindVertex(a.Gid(), ViewNew)
	require.ErrorIs(t, err, ErrDeletedObject)
	edges, err := reader.Edges(ViewNew)
	require.NoError(t, err)
	require.Empty(t, edges)

	// The surviving endpoints dropped their adjacency entries.
	vb, err := reader.FindVertex(b.Gid(), ViewNew)
	require.NoError(t, err)
	degree, err := vb.Degree(ViewNew)
	require.NoError(t, err)
	require.Zero(t, degree)
}

func TestDeletedVertexReadsFail(t *testing.T) {
	s := newTestStorage(t)
	prop := s.Names().NameToProperty("age")

	setup := s.Access()
	va, err := setup.CreateVertex()
	require.NoError(t, err)
	gid := va.Gid()
	require.NoError(t, setup.Commit())

	acc := s.Access()
	defer acc.Abort()
	va, err = acc.FindVertex(gid, ViewNew)
	require.NoError(t, err)
	require.NoError(t, acc.DeleteVertex(va))

	_, err = va.Labels(ViewNew)
	require.ErrorIs(t, err, ErrDeletedObject)
	_, err = va.SetProperty(prop, IntValue(1))
	require.ErrorIs(t, err, ErrDeletedObject)
	// OLD still reads the pre-delete state within this command.
	_, err = va.Labels(ViewOld)
	require.NoError(t, err)
}
