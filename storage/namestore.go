package storage

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// nameMap is one direction-pair of name↔id maps for a single name kind.
// Ids are dense, issued in registration order, and never reused.
type nameMap struct {
	mu    sync.RWMutex
	ids   map[string]uint64
	names map[uint64]string
}

func newNameMap() nameMap {
	return nameMap{
		ids:   make(map[string]uint64),
		names: make(map[uint64]string),
	}
}

// toID returns the existing id for name or assigns the next one.
func (nm *nameMap) toID(name string) uint64 {
	nm.mu.RLock()
	id, ok := nm.ids[name]
	nm.mu.RUnlock()
	if ok {
		return id
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if id, ok := nm.ids[name]; ok {
		return id
	}
	id = uint64(len(nm.ids))
	nm.ids[name] = id
	nm.names[id] = name
	return id
}

// toName returns the registered name for id.
func (nm *nameMap) toName(id uint64) (string, error) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	name, ok := nm.names[id]
	if !ok {
		return "", fmt.Errorf("id %d: %w", id, ErrUnknownID)
	}
	return name, nil
}

// NameStore maps human-readable label, property and edge type names to
// compact integer ids and back.
type NameStore struct {
	labels     nameMap
	properties nameMap
	edgeTypes  nameMap
}

// NewNameStore initializes an empty NameStore.
func NewNameStore() *NameStore {
	log := logrus.WithField("component", "NameStore")
	log.Info("Initializing NameStore")
	return &NameStore{
		labels:     newNameMap(),
		properties: newNameMap(),
		edgeTypes:  newNameMap(),
	}
}

// NameToLabel returns the id for a label name, registering it if new.
func (ns *NameStore) NameToLabel(name string) LabelId {
	return LabelId(ns.labels.toID(name))
}

// LabelToName returns the name registered for a label id.
func (ns *NameStore) LabelToName(id LabelId) (string, error) {
	name, err := ns.labels.toName(uint64(id))
	if err != nil {
		return "", fmt.Errorf("label: %w", err)
	}
	return name, nil
}

// NameToProperty returns the id for a property name, registering it if new.
func (ns *NameStore) NameToProperty(name string) PropertyId {
	return PropertyId(ns.properties.toID(name))
}

// PropertyToName returns the name registered for a property id.
func (ns *NameStore) PropertyToName(id PropertyId) (string, error) {
	name, err := ns.properties.toName(uint64(id))
	if err != nil {
		return "", fmt.Errorf("property: %w", err)
	}
	return name, nil
}

// NameToEdgeType returns the id for an edge type name, registering it if new.
func (ns *NameStore) NameToEdgeType(name string) EdgeTypeId {
	return EdgeTypeId(ns.edgeTypes.toID(name))
}

// EdgeTypeToName returns the name registered for an edge type id.
func (ns *NameStore) EdgeTypeToName(id EdgeTypeId) (string, error) {
	name, err := ns.edgeTypes.toName(uint64(id))
	if err != nil {
		return "", fmt.Errorf("edge type: %w", err)
	}
	return name, nil
}
