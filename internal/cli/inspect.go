package cli

import (
	"fmt"
	"sort"

	"github.com/julianstephens/go-utils/cliutil"
	"github.com/julianstephens/go-utils/generic"

	"github.com/syncwal/syncwal/internal/syncwal/wal"
)

// InspectCmd prints operation counts for a WAL directory.
type InspectCmd struct {
	DataDir        string `help:"Data directory"                              short:"d"`
	Detailed       bool   `help:"Break counts down by actor"`
	CheckIntegrity bool   `help:"Run a full integrity scan; exit 1 if corruption is found"`
}

func (c *InspectCmd) Run(appCtx *Context) error {
	dir := appCtx.dataDir(c.DataDir)

	r, err := wal.OpenReader(dir, appCtx.Logger)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("cannot open WAL at %s: %v", dir, err))
		return err
	}

	entries, err := r.ReadAll()
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("cannot read WAL: %v", err))
		return err
	}

	kinds := map[string]int{}
	actors := map[string]map[string]int{}
	var firstSeq, lastSeq uint64
	for i, e := range entries {
		kind := e.Op.Kind.String()
		kinds[kind]++
		if c.Detailed {
			if actors[e.Actor] == nil {
				actors[e.Actor] = map[string]int{}
			}
			actors[e.Actor][kind]++
		}
		if i == 0 {
			firstSeq = e.Seq
		}
		lastSeq = e.Seq
	}

	segments := r.Segments()
	fmt.Printf("segments: %d\n", len(segments))
	fmt.Printf("entries:  %d\n", len(entries))
	if len(entries) > 0 {
		fmt.Printf("seq:      %d..%d\n", firstSeq, lastSeq)
	}
	for _, kind := range sortedKeys(kinds) {
		fmt.Printf("  %-10s %d\n", kind, kinds[kind])
	}

	if c.Detailed {
		fmt.Println("by actor:")
		actorNames := make([]string, 0, len(actors))
		for a := range actors {
			actorNames = append(actorNames, a)
		}
		sort.Strings(actorNames)
		for _, a := range actorNames {
			fmt.Printf("  %s:\n", a)
			for _, kind := range sortedKeys(actors[a]) {
				fmt.Printf("    %-10s %d\n", kind, actors[a][kind])
			}
		}
	}

	if c.CheckIntegrity {
		report, err := r.Validate()
		if err != nil {
			cliutil.PrintError(fmt.Sprintf("integrity scan failed: %v", err))
			return err
		}
		fmt.Printf("integrity: valid=%d corrupted=%d corrupted_segments=%d truncated_segments=%d rate=%.4f\n",
			report.ValidEntries, report.CorruptedEntries,
			report.CorruptedSegments, report.TruncatedSegments, report.CorruptionRate())
		fmt.Printf("integrity: %s\n", generic.If(report.IsHealthy(), "ok", "corrupt"))
		if !report.IsHealthy() {
			cliutil.PrintError("WAL contains corrupt frames")
			return ErrValidationFailed
		}
	}

	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
