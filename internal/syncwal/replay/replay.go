package replay

import (
	"io"

	"github.com/julianstephens/go-utils/validator"

	"github.com/syncwal/syncwal/internal/logger"
	"github.com/syncwal/syncwal/internal/syncwal/state"
	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

// Stats summarizes one replay pass over a WAL directory.
type Stats struct {
	Puts           int `json:"puts"`
	Deletes        int `json:"deletes"`
	Checkpoints    int `json:"checkpoints"`
	Compacts       int `json:"compacts"`
	Errors         int `json:"errors"`
	Skipped        int `json:"skipped"`
	TotalEntries   int `json:"total_entries"`
	FinalNodeCount int `json:"final_node_count"`
}

// SuccessRate returns 1 - errors/total, or 1 for an empty log.
func (s Stats) SuccessRate() float64 {
	if s.TotalEntries == 0 {
		return 1
	}
	return 1 - float64(s.Errors)/float64(s.TotalEntries)
}

// Replay folds every entry reachable through the provider into a fresh
// state map, in segment order. Damaged frames are counted as errors and
// never abort the pass; only failing to open a segment does. When
// actorFilter is non-empty, entries written by other actors are skipped
// without touching the state or the per-kind counters.
func Replay(p wal.SegmentProvider, actorFilter string, lg logger.Logger) (*state.Map, Stats, error) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}

	st := state.New()
	stats := Stats{}

	indexes := p.SegmentIndexes()
	if err := validateIndexes(indexes); err != nil {
		return st, stats, err
	}
	lg.Debug("starting replay", "segments", len(indexes), "actor_filter", actorFilter)

	for _, index := range indexes {
		sr, err := p.OpenSegment(index)
		if err != nil {
			return st, stats, &ReplayError{Segment: index, Err: err}
		}

		sc := wal.NewScanner(sr.Reader())
		for {
			e, err := sc.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = sr.Close()
				return st, stats, &ReplayError{Segment: index, Err: err}
			}

			if actorFilter != "" && e.Actor != actorFilter {
				stats.Skipped++
				continue
			}

			if err := st.Apply(e); err != nil {
				lg.Warn("entry apply failed", "seq", e.Seq, "kind", e.Op.Kind.String())
				stats.Errors++
				continue
			}
			noteApplied(&stats, e)
		}
		_ = sr.Close()

		stats.Errors += sc.Corrupted()
		if sc.Corrupted() > 0 {
			lg.Warn("corrupt frames skipped during replay", "segment", index, "count", sc.Corrupted())
		}
	}

	stats.TotalEntries = stats.Puts + stats.Deletes + stats.Checkpoints + stats.Compacts + stats.Errors
	stats.FinalNodeCount = st.Len()
	lg.Info("replay complete",
		"entries", stats.TotalEntries, "errors", stats.Errors, "nodes", stats.FinalNodeCount)
	return st, stats, nil
}

// validateIndexes checks that the segment indexes are non-zero and
// consecutive. Compaction removes a prefix of segments, so a hole in the
// middle of the range means files were tampered with out of band.
func validateIndexes(indexes []uint64) error {
	v := validator.Numbers[uint64]()
	for i, index := range indexes {
		if err := v.ValidateNonZero(index); err != nil {
			return &ReplayError{Segment: index, Err: err}
		}
		if i > 0 {
			if err := v.ValidateConsecutive(indexes[i-1], index); err != nil {
				return &ReplayError{Segment: index, Err: err}
			}
		}
	}
	return nil
}

func noteApplied(stats *Stats, e entry.Entry) {
	switch e.Op.Kind {
	case entry.OpPut:
		stats.Puts++
	case entry.OpDelete:
		stats.Deletes++
	case entry.OpCheckpoint:
		stats.Checkpoints++
	case entry.OpCompact:
		stats.Compacts++
	}
}

// ReplayWAL opens dataDir read-only and replays it, optionally
// restricted to a single actor's entries.
func ReplayWAL(dataDir string, actorFilter string, lg logger.Logger) (*state.Map, Stats, error) {
	r, err := wal.OpenReader(dataDir, lg)
	if err != nil {
		return nil, Stats{}, err
	}
	return Replay(r, actorFilter, lg)
}

// RebuildFromWAL reconstructs the full application state from dataDir.
// With validate set, an integrity scan runs first and its findings are
// logged; corruption does not prevent the rebuild.
func RebuildFromWAL(dataDir string, validate bool, lg logger.Logger) (*state.Map, Stats, error) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}

	r, err := wal.OpenReader(dataDir, lg)
	if err != nil {
		return nil, Stats{}, err
	}

	if validate {
		report, err := r.Validate()
		if err != nil {
			return nil, Stats{}, err
		}
		if !report.IsHealthy() {
			lg.Warn("validation found corruption before rebuild",
				"corrupted_entries", report.CorruptedEntries,
				"corrupted_segments", report.CorruptedSegments)
		}
	}

	return Replay(r, "", lg)
}
