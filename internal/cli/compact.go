package cli

import (
	"fmt"

	"github.com/julianstephens/go-utils/cliutil"

	"github.com/syncwal/syncwal/internal/syncwal/wal"
)

// CompactCmd removes fully-covered segments from a WAL directory.
type CompactCmd struct {
	DataDir   string `help:"Data directory"                                            short:"d"`
	BeforeSeq uint64 `help:"Compact entries with seq below this value"`
	Strategy  string `help:"Planning strategy when --before-seq is not given" enum:"auto,aggressive" default:"auto"`
	DryRun    bool   `help:"Print the plan without touching the log"`
}

func (c *CompactCmd) Run(appCtx *Context) error {
	dir := appCtx.dataDir(c.DataDir)

	opts := wal.Options{
		SegmentMaxBytes: appCtx.Config.WAL.SegmentMaxBytes,
		Durability:      appCtx.Config.Durability(),
	}
	w, err := wal.Open(dir, opts, appCtx.Logger)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("cannot open WAL at %s: %v", dir, err))
		return err
	}
	defer func() { _ = w.Close() }()

	target, strategy, err := c.plan(w, appCtx)
	if err != nil {
		cliutil.PrintError(err.Error())
		return err
	}
	if target == 0 {
		fmt.Println("nothing to compact")
		return nil
	}

	if c.DryRun {
		var removable []uint64
		for _, info := range w.Segments() {
			if info.LastSeq != 0 && info.LastSeq < target {
				removable = append(removable, info.Index)
			}
		}
		fmt.Printf("plan: compact through seq %d (%s), %d of %d segments removable\n",
			target, strategy, len(removable), len(w.Segments()))
		return nil
	}

	res, err := w.Compact(target, strategy)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("compaction failed: %v", err))
		return err
	}

	fmt.Printf("compacted through seq %d (requested %d), removed %d segments\n",
		res.EffectiveSeq, res.RequestedSeq, len(res.RemovedSegments))
	if res.RewroteBoundary {
		fmt.Println("boundary segment rewritten")
	}
	return nil
}

// plan chooses the compaction point. With --before-seq the caller
// decides; otherwise the strategy keeps a trailing window of entries.
func (c *CompactCmd) plan(w *wal.WAL, appCtx *Context) (uint64, wal.CompactStrategy, error) {
	if c.BeforeSeq > 0 {
		strategy := wal.CompactConservative
		if c.Strategy == "aggressive" {
			strategy = wal.CompactAggressive
		}
		return c.BeforeSeq, strategy, nil
	}

	entries, err := w.ReadAll()
	if err != nil {
		return 0, wal.CompactConservative, fmt.Errorf("cannot read WAL: %w", err)
	}
	total := len(entries)

	var keep int
	var strategy wal.CompactStrategy
	switch c.Strategy {
	case "aggressive":
		keep = appCtx.Config.Compact.AggressiveKeep
		strategy = wal.CompactAggressive
	default:
		keep = appCtx.Config.Compact.KeepMin
		if total/2 > keep {
			keep = total / 2
		}
		strategy = wal.CompactConservative
	}

	if total <= keep {
		return 0, strategy, nil
	}
	// First kept entry's seq is the compaction point.
	return entries[total-keep].Seq, strategy, nil
}
