package store

import (
	"errors"
	"sync"

	"github.com/julianstephens/go-utils/helpers"

	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal"
	"github.com/syncwal/syncwal/internal/syncwal/manifest"
	"github.com/syncwal/syncwal/internal/syncwal/replay"
	"github.com/syncwal/syncwal/internal/syncwal/state"
	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

// Store is a WAL-backed node document store. Every mutation is appended
// to the log before it touches the in-memory state, so the state is
// always reconstructible by replay.
type Store struct {
	mu     sync.Mutex
	dir    string
	wal    *wal.WAL
	state  *state.Map
	opts   syncwal.OpenOptions
	logger logger.Logger
	closed bool
}

// Open opens or creates a store at dataDir with no logging.
func Open(dataDir string) (*Store, error) {
	return OpenWithOptions(dataDir, syncwal.OpenOptions{}, logger.NoOpLogger{})
}

// OpenWithOptions opens or creates a store with the given options and
// logger. The caller owns the logger lifecycle. A nil logger disables
// logging.
func OpenWithOptions(dataDir string, opts syncwal.OpenOptions, lg logger.Logger) (*Store, error) {
	if dataDir == "" {
		return nil, wrapStoreErr("open", ErrInvalidDir, dataDir, nil)
	}

	if lg == nil {
		lg = logger.NoOpLogger{}
	}

	lg.Info("opening store", "dir", dataDir, "durability", opts.Durability.String())

	s := &Store{
		dir:    dataDir,
		logger: lg,
		opts:   opts,
	}

	if err := s.initialize(); err != nil {
		lg.Error("failed to initialize store", err, "dir", dataDir)
		return nil, err
	}

	lg.Info("store opened", "dir", dataDir, "nodes", s.state.Len(), "next_seq", s.wal.NextSeq())
	return s, nil
}

func (s *Store) initialize() error {
	if err := helpers.Ensure(s.dir, true); err != nil {
		return wrapStoreErr("open", ErrInvalidDir, s.dir, err)
	}

	m, err := manifest.Open(s.dir)
	switch {
	case errors.Is(err, manifest.ErrManifestNotFound):
		m = manifest.Default()
		m.Durability = s.opts.Durability.String()
		m.SegmentMaxBytes = s.opts.WALOptions().SegmentMaxBytes
		if m.SegmentMaxBytes == 0 {
			m.SegmentMaxBytes = wal.DefaultSegmentMaxBytes
		}
		if err := manifest.Create(s.dir, m); err != nil {
			return wrapStoreErr("open", ErrManifestFailed, s.dir, err)
		}
	case err != nil:
		return wrapStoreErr("open", ErrManifestFailed, s.dir, err)
	}

	w, err := wal.Open(s.dir, s.opts.WALOptions(), s.logger)
	if err != nil {
		return wrapStoreErr("open", ErrWALOpenFailed, s.dir, err)
	}
	s.wal = w

	s.logger.Info("starting state rebuild", "segments", len(w.Segments()))
	st, stats, err := replay.Replay(w, "", s.logger)
	if err != nil {
		_ = w.Close()
		return wrapStoreErr("open", ErrRebuildFailed, s.dir, err)
	}
	if stats.Errors > 0 {
		s.logger.Warn("rebuild skipped damaged entries", "errors", stats.Errors)
	}
	s.state = st

	s.logger.Info("state rebuild complete",
		"entries", stats.TotalEntries, "nodes", stats.FinalNodeCount)
	return nil
}

// Close seals the active segment and releases the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapStoreErr("close", ErrClosed, s.dir, nil)
	}

	s.logger.Info("closing store", "dir", s.dir)
	if err := s.wal.Close(); err != nil {
		s.logger.Error("failed to close WAL", err, "dir", s.dir)
		return wrapStoreErr("close", ErrCloseFailed, s.dir, err)
	}

	s.closed = true
	return nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// IsClosed returns true if the store is closed.
func (s *Store) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Put writes a document for id as actor, logging before applying.
func (s *Store) Put(actor, id string, data []byte) (uint64, error) {
	if id == "" {
		return 0, wrapStoreErr("put", ErrEmptyNodeID, s.dir, nil)
	}
	if len(data) > entry.MaxDocumentSize {
		return 0, wrapStoreErr("put", ErrDocumentTooLarge, s.dir, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrapStoreErr("put", ErrClosed, s.dir, nil)
	}

	// The state is stamped with the seq and timestamp the log recorded, so a
	// live document matches the one a post-restart rebuild produces.
	e, err := s.wal.AppendEntry(actor, entry.PutOp(id, data))
	if err != nil {
		s.logger.Error("put append failed", err, "id", id, "actor", actor)
		return 0, wrapStoreErr("put", ErrAppendFailed, s.dir, err)
	}

	if err := s.state.Put(id, data, actor, e.Timestamp, e.Seq); err != nil {
		return e.Seq, wrapStoreErr("put", ErrAppendFailed, s.dir, err)
	}

	s.logger.Debug("put", "seq", e.Seq, "id", id, "actor", actor, "size", len(data))
	return e.Seq, nil
}

// Delete removes a document for id as actor. Deleting an absent id
// still logs an entry; the WAL records intent, not effect.
func (s *Store) Delete(actor, id string) (uint64, error) {
	if id == "" {
		return 0, wrapStoreErr("delete", ErrEmptyNodeID, s.dir, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrapStoreErr("delete", ErrClosed, s.dir, nil)
	}

	seq, err := s.wal.Append(actor, entry.DeleteOp(id))
	if err != nil {
		s.logger.Error("delete append failed", err, "id", id, "actor", actor)
		return 0, wrapStoreErr("delete", ErrAppendFailed, s.dir, err)
	}

	if err := s.state.Delete(id); err != nil {
		return seq, wrapStoreErr("delete", ErrAppendFailed, s.dir, err)
	}

	s.logger.Debug("delete", "seq", seq, "id", id, "actor", actor)
	return seq, nil
}

// PutBatch writes several documents as one durability unit.
func (s *Store) PutBatch(actor string, docs map[string][]byte) ([]uint64, error) {
	ops := make([]entry.Operation, 0, len(docs))
	for id, data := range docs {
		if id == "" {
			return nil, wrapStoreErr("put_batch", ErrEmptyNodeID, s.dir, nil)
		}
		if len(data) > entry.MaxDocumentSize {
			return nil, wrapStoreErr("put_batch", ErrDocumentTooLarge, s.dir, nil)
		}
		ops = append(ops, entry.PutOp(id, data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, wrapStoreErr("put_batch", ErrClosed, s.dir, nil)
	}

	ents, err := s.wal.AppendBatchEntries(actor, ops)
	if err != nil {
		s.logger.Error("batch append failed", err, "actor", actor, "count", len(ops))
		return nil, wrapStoreErr("put_batch", ErrAppendFailed, s.dir, err)
	}

	seqs := make([]uint64, len(ents))
	for i, e := range ents {
		seqs[i] = e.Seq
		if err := s.state.Put(e.Op.NodeID, e.Op.Data, actor, e.Timestamp, e.Seq); err != nil {
			return seqs, wrapStoreErr("put_batch", ErrAppendFailed, s.dir, err)
		}
	}

	s.logger.Debug("put batch", "actor", actor, "count", len(ops))
	return seqs, nil
}

// Get retrieves the document for id from the in-memory state.
func (s *Store) Get(id string) (state.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return state.Document{}, wrapStoreErr("get", ErrClosed, s.dir, nil)
	}

	doc, ok := s.state.Get(id)
	s.logger.Debug("get", "id", id, "found", ok)
	if !ok {
		return state.Document{}, wrapStoreErr("get", ErrNotFound, s.dir, nil)
	}
	return doc, nil
}

// Len returns the number of live nodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Len()
}

// Snapshot returns a copy of the current state map.
func (s *Store) Snapshot() map[string]state.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Checkpoint logs a marker recording that state through the most recent
// seq has been captured externally.
func (s *Store) Checkpoint(actor string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wrapStoreErr("checkpoint", ErrClosed, s.dir, nil)
	}

	through := s.wal.NextSeq() - 1
	seq, err := s.wal.Append(actor, entry.CheckpointOp(through))
	if err != nil {
		s.logger.Error("checkpoint append failed", err, "actor", actor)
		return 0, wrapStoreErr("checkpoint", ErrAppendFailed, s.dir, err)
	}

	s.logger.Info("checkpoint", "seq", seq, "through", through, "actor", actor)
	return seq, nil
}

// Compact removes segments wholly covered by throughSeq. The in-memory
// state is unaffected; compaction only discards history.
func (s *Store) Compact(throughSeq uint64, strategy wal.CompactStrategy) (*wal.CompactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, wrapStoreErr("compact", ErrClosed, s.dir, nil)
	}

	res, err := s.wal.Compact(throughSeq, strategy)
	if err != nil {
		s.logger.Error("compact failed", err, "through", throughSeq)
		return nil, wrapStoreErr("compact", ErrCompactFailed, s.dir, err)
	}

	s.logger.Info("compact complete",
		"requested", res.RequestedSeq, "effective", res.EffectiveSeq,
		"removed_segments", res.RemovedSegments)
	return &res, nil
}

// Validate runs a full integrity scan over the underlying WAL.
func (s *Store) Validate() (wal.ValidationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wal.ValidationReport{}, wrapStoreErr("validate", ErrClosed, s.dir, nil)
	}
	return s.wal.Validate()
}
