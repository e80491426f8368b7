package storage

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config carries the tunables of a storage instance.
type Config struct {
	// LockTimeout bounds how long a writer polls for a record lock held by
	// another transaction before giving up with a serialization conflict.
	// Zero fails immediately.
	LockTimeout time.Duration

	// GCInterval is the period of the background garbage collection cycle.
	// Zero disables the background loop; CollectGarbage still works.
	GCInterval time.Duration
}

// Option adjusts the storage configuration.
type Option func(*Config)

// WithLockTimeout sets the record lock acquisition timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Config) { c.LockTimeout = d }
}

// WithGCInterval sets the background garbage collection period.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) { c.GCInterval = d }
}

// Storage is a single-node in-memory transactional graph store. Vertices and
// edges are multi-versioned; every access runs inside a transaction obtained
// from Access.
type Storage struct {
	id     uuid.UUID
	engine *Engine
	names  *NameStore

	vertices *SkipList[*Vertex]
	edges    *SkipList[*Edge]
	nextGid  atomic.Uint64

	labelIndex         *LabelIndex
	labelPropertyIndex *LabelPropertyIndex

	lockTimeout time.Duration
	gc          *garbageCollector

	log *logrus.Entry
}

func compareVerticesByGid(a, b *Vertex) int {
	switch {
	case a.gid < b.gid:
		return -1
	case a.gid > b.gid:
		return 1
	}
	return 0
}

func compareEdgesByGid(a, b *Edge) int {
	switch {
	case a.gid < b.gid:
		return -1
	case a.gid > b.gid:
		return 1
	}
	return 0
}

// NewStorage initializes a storage instance.
func NewStorage(opts ...Option) *Storage {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	log := logrus.WithFields(logrus.Fields{
		"component": "Storage",
		"instance":  id.String(),
	})
	log.Info("Initializing Storage")

	s := &Storage{
		id:                 id,
		engine:             NewEngine(),
		names:              NewNameStore(),
		vertices:           NewSkipList(compareVerticesByGid, 1),
		edges:              NewSkipList(compareEdgesByGid, 2),
		labelIndex:         NewLabelIndex(),
		labelPropertyIndex: NewLabelPropertyIndex(),
		lockTimeout:        cfg.LockTimeout,
		log:                log,
	}
	s.nextGid.Store(1)
	s.gc = newGarbageCollector(s, cfg.GCInterval)
	s.gc.start()
	return s
}

// Close stops the background garbage collector.
func (s *Storage) Close() {
	s.gc.stop()
	s.log.Info("Storage closed")
}

// Names returns the name store translating labels, properties and edge
// types.
func (s *Storage) Names() *NameStore {
	return s.names
}

// CollectGarbage runs one garbage collection cycle synchronously.
func (s *Storage) CollectGarbage() {
	s.gc.collectOnce()
}

func (s *Storage) allocGid() Gid {
	return Gid(s.nextGid.Add(1) - 1)
}

// Access begins a transaction and returns the accessor bound to it.
func (s *Storage) Access() *Accessor {
	tx := s.engine.Begin()
	tx.store = s
	return &Accessor{storage: s, tx: tx}
}

// Accessor binds one transaction to the storage. It is confined to a single
// goroutine for its whole lifetime.
type Accessor struct {
	storage *Storage
	tx      *Transaction
}

// TransactionID returns the id of the underlying transaction.
func (a *Accessor) TransactionID() uint64 {
	return a.tx.id
}

func (a *Accessor) check() error {
	if a.tx.done {
		return ErrTransactionEnded
	}
	return nil
}

// Commit finalizes the transaction. The accessor is unusable afterwards.
func (a *Accessor) Commit() error {
	if err := a.check(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.storage.engine.Commit(a.tx)
	return nil
}

// Abort rolls the transaction back. The accessor is unusable afterwards.
func (a *Accessor) Abort() error {
	if err := a.check(); err != nil {
		return fmt.Errorf("abort: %w", err)
	}
	a.storage.engine.Abort(a.tx)
	return nil
}

// AdvanceCommand makes the transaction's own earlier writes visible to its
// OLD view.
func (a *Accessor) AdvanceCommand() error {
	if err := a.check(); err != nil {
		return fmt.Errorf("advance command: %w", err)
	}
	a.tx.commandID++
	return nil
}

// CreateVertex creates a vertex visible to this transaction only until
// commit.
func (a *Accessor) CreateVertex() (*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("create vertex: %w", err)
	}
	v := &Vertex{gid: a.storage.allocGid()}
	v.chain = NewVersionChain(a.tx, vertexData{
		properties: make(map[PropertyId]PropertyValue),
	})
	a.storage.vertices.Insert(v)

	a.storage.log.WithFields(logrus.Fields{
		"transaction": a.tx.id,
		"vertex":      v.gid,
	}).Debug("Vertex created")
	return &VertexAccessor{vertex: v, tx: a.tx, storage: a.storage}, nil
}

// FindVertex returns an accessor for the vertex with the given gid, if it is
// visible in the given view.
func (a *Accessor) FindVertex(gid Gid, view View) (*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("find vertex %d: %w", gid, err)
	}
	it := a.storage.vertices.Seek(&Vertex{gid: gid})
	if !it.Valid() || it.Value().gid != gid {
		return nil, fmt.Errorf("vertex %d: %w", gid, ErrUnknownID)
	}
	v := it.Value()
	if _, ok := v.chain.Visible(a.tx, view); !ok {
		return nil, fmt.Errorf("vertex %d: %w", gid, ErrDeletedObject)
	}
	return &VertexAccessor{vertex: v, tx: a.tx, storage: a.storage}, nil
}

// Vertices returns accessors for every vertex visible in the given view,
// ordered by gid.
func (a *Accessor) Vertices(view View) ([]*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("scan vertices: %w", err)
	}
	var out []*VertexAccessor
	for it := a.storage.vertices.SeekFirst(); it.Valid(); it.Next() {
		v := it.Value()
		if _, ok := v.chain.Visible(a.tx, view); ok {
			out = append(out, &VertexAccessor{vertex: v, tx: a.tx, storage: a.storage})
		}
	}
	return out, nil
}

// FindEdge returns an accessor for the edge with the given gid, if it is
// visible in the given view.
func (a *Accessor) FindEdge(gid Gid, view View) (*EdgeAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("find edge %d: %w", gid, err)
	}
	it := a.storage.edges.Seek(&Edge{gid: gid})
	if !it.Valid() || it.Value().gid != gid {
		return nil, fmt.Errorf("edge %d: %w", gid, ErrUnknownID)
	}
	e := it.Value()
	if _, ok := e.chain.Visible(a.tx, view); !ok {
		return nil, fmt.Errorf("edge %d: %w", gid, ErrDeletedObject)
	}
	return &EdgeAccessor{edge: e, tx: a.tx, storage: a.storage}, nil
}

// Edges returns accessors for every edge visible in the given view, ordered
// by gid.
func (a *Accessor) Edges(view View) ([]*EdgeAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}
	var out []*EdgeAccessor
	for it := a.storage.edges.SeekFirst(); it.Valid(); it.Next() {
		e := it.Value()
		if _, ok := e.chain.Visible(a.tx, view); ok {
			out = append(out, &EdgeAccessor{edge: e, tx: a.tx, storage: a.storage})
		}
	}
	return out, nil
}

// DeleteVertex deletes a vertex with no incident edges. A vertex that still
// has edges in the NEW view fails with ErrVertexHasEdges.
func (a *Accessor) DeleteVertex(va *VertexAccessor) error {
	if err := a.check(); err != nil {
		return fmt.Errorf("delete vertex %d: %w", va.Gid(), err)
	}
	if err := va.vertex.chain.LockWrite(a.tx, a.storage.lockTimeout); err != nil {
		return fmt.Errorf("delete vertex %d: %w", va.Gid(), err)
	}
	v, ok := va.vertex.chain.Visible(a.tx, ViewNew)
	if !ok {
		return fmt.Errorf("delete vertex %d: %w", va.Gid(), ErrDeletedObject)
	}
	if len(v.data.outEdges) > 0 || len(v.data.inEdges) > 0 {
		return fmt.Errorf("delete vertex %d: %w", va.Gid(), ErrVertexHasEdges)
	}
	if err := va.vertex.chain.MarkDeleted(a.tx, a.storage.lockTimeout); err != nil {
		return fmt.Errorf("delete vertex %d: %w", va.Gid(), err)
	}
	a.storage.log.WithFields(logrus.Fields{
		"transaction": a.tx.id,
		"vertex":      va.Gid(),
	}).Debug("Vertex deleted")
	return nil
}

// DetachDeleteVertex deletes a vertex together with all its incident edges.
func (a *Accessor) DetachDeleteVertex(va *VertexAccessor) error {
	if err := a.check(); err != nil {
		return fmt.Errorf("detach delete vertex %d: %w", va.Gid(), err)
	}
	out, err := va.OutEdges(ViewNew, nil, nil)
	if err != nil {
		return fmt.Errorf("detach delete vertex %d: %w", va.Gid(), err)
	}
	in, err := va.InEdges(ViewNew, nil, nil)
	if err != nil {
		return fmt.Errorf("detach delete vertex %d: %w", va.Gid(), err)
	}
	for _, ea := range out {
		if err := a.DeleteEdge(ea); err != nil {
			return fmt.Errorf("detach delete vertex %d: %w", va.Gid(), err)
		}
	}
	for _, ea := range in {
		if err := a.DeleteEdge(ea); err != nil {
			return fmt.Errorf("detach delete vertex %d: %w", va.Gid(), err)
		}
	}
	return a.DeleteVertex(va)
}

// CreateEdge creates an edge from one vertex to another. Both endpoints are
// write-locked and their adjacency lists updated in this transaction.
func (a *Accessor) CreateEdge(from, to *VertexAccessor, edgeType EdgeTypeId) (*EdgeAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("create edge: %w", err)
	}

	fromData, err := from.update()
	if err != nil {
		return nil, fmt.Errorf("create edge from %d: %w", from.Gid(), err)
	}
	var toData *vertexData
	if to.vertex == from.vertex {
		toData = fromData
	} else {
		toData, err = to.update()
		if err != nil {
			return nil, fmt.Errorf("create edge to %d: %w", to.Gid(), err)
		}
	}

	e := &Edge{
		gid:      a.storage.allocGid(),
		from:     from.vertex,
		to:       to.vertex,
		edgeType: edgeType,
	}
	e.chain = NewVersionChain(a.tx, edgeData{
		properties: make(map[PropertyId]PropertyValue),
	})
	a.storage.edges.Insert(e)

	fromData.outEdges = append(fromData.outEdges, edgeRef{edge: e, other: to.vertex, edgeType: edgeType})
	toData.inEdges = append(toData.inEdges, edgeRef{edge: e, other: from.vertex, edgeType: edgeType})

	a.storage.log.WithFields(logrus.Fields{
		"transaction": a.tx.id,
		"edge":        e.gid,
		"from":        from.Gid(),
		"to":          to.Gid(),
	}).Debug("Edge created")
	return &EdgeAccessor{edge: e, tx: a.tx, storage: a.storage}, nil
}

func dropEdgeRef(refs []edgeRef, gid Gid) []edgeRef {
	return slices.DeleteFunc(refs, func(r edgeRef) bool { return r.edge.gid == gid })
}

// DeleteEdge deletes an edge and removes it from both endpoints' adjacency
// lists.
func (a *Accessor) DeleteEdge(ea *EdgeAccessor) error {
	if err := a.check(); err != nil {
		return fmt.Errorf("delete edge %d: %w", ea.Gid(), err)
	}
	e := ea.edge

	fromData, err := (&VertexAccessor{vertex: e.from, tx: a.tx, storage: a.storage}).update()
	if err != nil {
		return fmt.Errorf("delete edge %d from %d: %w", e.gid, e.from.gid, err)
	}
	var toData *vertexData
	if e.to == e.from {
		toData = fromData
	} else {
		toData, err = (&VertexAccessor{vertex: e.to, tx: a.tx, storage: a.storage}).update()
		if err != nil {
			return fmt.Errorf("delete edge %d to %d: %w", e.gid, e.to.gid, err)
		}
	}

	if err := e.chain.MarkDeleted(a.tx, a.storage.lockTimeout); err != nil {
		return fmt.Errorf("delete edge %d: %w", e.gid, err)
	}

	fromData.outEdges = dropEdgeRef(fromData.outEdges, e.gid)
	toData.inEdges = dropEdgeRef(toData.inEdges, e.gid)

	a.storage.log.WithFields(logrus.Fields{
		"transaction": a.tx.id,
		"edge":        e.gid,
	}).Debug("Edge deleted")
	return nil
}

// ScanLabel returns accessors for the vertices carrying label in the given
// view, ordered by gid.
func (a *Accessor) ScanLabel(label LabelId, view View) ([]*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("scan label %d: %w", label, err)
	}
	return a.storage.labelIndex.Scan(a.tx, label, view), nil
}

// ScanLabelProperty returns accessors for every vertex carrying label with a
// non-null value for property, ordered by value then gid.
func (a *Accessor) ScanLabelProperty(label LabelId, prop PropertyId, view View) ([]*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("scan label %d property %d: %w", label, prop, err)
	}
	return a.storage.labelPropertyIndex.ScanRange(a.tx, IndexKey{Label: label, Property: prop}, nil, nil, view)
}

// ScanLabelPropertyEqual returns accessors for the vertices carrying label
// whose property compares equal to value, ordered by value then gid.
func (a *Accessor) ScanLabelPropertyEqual(label LabelId, prop PropertyId, value PropertyValue, view View) ([]*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("scan label %d property %d: %w", label, prop, err)
	}
	return a.storage.labelPropertyIndex.ScanEqual(a.tx, IndexKey{Label: label, Property: prop}, value, view)
}

// ScanLabelPropertyRange returns accessors for the vertices carrying label
// whose property falls in the given bounds, ordered by value then gid.
func (a *Accessor) ScanLabelPropertyRange(label LabelId, prop PropertyId, lower, upper *Bound, view View) ([]*VertexAccessor, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("scan label %d property %d: %w", label, prop, err)
	}
	return a.storage.labelPropertyIndex.ScanRange(a.tx, IndexKey{Label: label, Property: prop}, lower, upper, view)
}

// CreateIndex registers a label+property index and backfills it from the
// latest committed state of every vertex. The key is registered before the
// backfill starts, so writers running concurrently index their own changes;
// the duplicates that can produce are collapsed at scan time.
func (s *Storage) CreateIndex(label LabelId, prop PropertyId) error {
	key := IndexKey{Label: label, Property: prop}
	sl, err := s.labelPropertyIndex.register(key)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"label":    label,
			"property": prop,
		}).Error("Index creation failed")
		return fmt.Errorf("create index: %w", err)
	}

	ts := s.engine.currentID()
	clog := s.engine.clog
	count := 0
	for it := s.vertices.SeekFirst(); it.Valid(); it.Next() {
		vertex := it.Value()
		v, ok := vertex.chain.visibleAt(ts, clog)
		if !ok {
			continue
		}
		if !slices.Contains(v.data.labels, label) {
			continue
		}
		value, has := v.data.properties[prop]
		if !has {
			continue
		}
		sl.Insert(lpIndexEntry{value: value, vertex: vertex, ts: v.txCreated})
		count++
	}

	s.log.WithFields(logrus.Fields{
		"label":    label,
		"property": prop,
		"entries":  count,
	}).Info("Index created")
	return nil
}

// DropIndex removes a label+property index.
func (s *Storage) DropIndex(label LabelId, prop PropertyId) error {
	if err := s.labelPropertyIndex.drop(IndexKey{Label: label, Property: prop}); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"label":    label,
		"property": prop,
	}).Info("Index dropped")
	return nil
}

// IndexExists reports whether a label+property index is registered.
func (s *Storage) IndexExists(label LabelId, prop PropertyId) bool {
	return s.labelPropertyIndex.has(IndexKey{Label: label, Property: prop})
}

// LabelIndexExists reports whether the label index holds entries for label.
// Label indexes are maintained automatically; a label that was never added to
// any vertex has none.
func (s *Storage) LabelIndexExists(label LabelId) bool {
	return s.labelIndex.has(label)
}

// ListAllIndices returns the registered label+property index keys.
func (s *Storage) ListAllIndices() []IndexKey {
	return s.labelPropertyIndex.keys()
}
