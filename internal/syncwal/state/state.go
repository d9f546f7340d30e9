package state

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/julianstephens/go-utils/jsonutil"

	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

var (
	ErrEmptyNodeID = errors.New("state: empty node id")
	ErrInvalidOp   = errors.New("state: invalid op kind")
)

// Document is the value stored for a node id, together with the
// provenance of the write that produced it.
type Document struct {
	Data      []byte `json:"data"`
	Actor     string `json:"actor"`
	Timestamp int64  `json:"timestamp"`
	Seq       uint64 `json:"seq"`
}

// Map is an in-memory node-id to document table. Entries applied in
// seq order follow last-writer-wins: a later Put overwrites, a later
// Delete removes the id entirely.
type Map struct {
	mu sync.RWMutex
	m  map[string]Document
}

// New creates an empty state map.
func New() *Map {
	return &Map{
		m: make(map[string]Document),
	}
}

// Get returns the document for id if present.
func (s *Map) Get(id string) (doc Document, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok = s.m[id]
	return doc, ok
}

// Put sets id to the given document data.
func (s *Map) Put(id string, data []byte, actor string, timestamp int64, seq uint64) error {
	if id == "" {
		return ErrEmptyNodeID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := make([]byte, len(data))
	copy(d, data)
	s.m[id] = Document{Data: d, Actor: actor, Timestamp: timestamp, Seq: seq}
	return nil
}

// Delete removes id. Deleting an absent id is not an error.
func (s *Map) Delete(id string) error {
	if id == "" {
		return ErrEmptyNodeID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, id)
	return nil
}

// Apply folds a single log entry into the map. Checkpoint and Compact
// entries leave the map unchanged.
func (s *Map) Apply(e entry.Entry) error {
	switch e.Op.Kind {
	case entry.OpPut:
		return s.Put(e.Op.NodeID, e.Op.Data, e.Actor, e.Timestamp, e.Seq)
	case entry.OpDelete:
		return s.Delete(e.Op.NodeID)
	case entry.OpCheckpoint, entry.OpCompact:
		return nil
	default:
		return ErrInvalidOp
	}
}

// Len returns the number of live node ids.
func (s *Map) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.m)
}

// Snapshot returns a copy of the current state.
func (s *Map) Snapshot() map[string]Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Document, len(s.m))
	for id, doc := range s.m {
		// Copy data to avoid sharing memory.
		d := make([]byte, len(doc.Data))
		copy(d, doc.Data)
		out[id] = Document{Data: d, Actor: doc.Actor, Timestamp: doc.Timestamp, Seq: doc.Seq}
	}
	return out
}

// JSON renders the state as a node-id to raw document map, the shape
// consumed by the replay tooling.
func (s *Map) JSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(s.m))
	for id, doc := range s.m {
		if len(doc.Data) == 0 {
			out[id] = json.RawMessage("null")
			continue
		}
		out[id] = json.RawMessage(doc.Data)
	}
	return jsonutil.Marshal(out)
}
