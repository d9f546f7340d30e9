package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/julianstephens/go-utils/helpers"
	"github.com/julianstephens/go-utils/jsonutil"

	"github.com/syncwal/syncwal/internal/syncwal"
	"github.com/syncwal/syncwal/internal/syncwal/wal"
	"github.com/syncwal/syncwal/internal/syncwal/wal/entry"
)

const ManifestFileName = "MANIFEST.json"

// Manifest describes the on-disk settings of a data directory. It is
// written once on creation and consulted on every open so that readers
// and writers agree on limits without reparsing flags.
type Manifest struct {
	Version         int    `json:"version"`
	Durability      string `json:"durability"`
	SegmentMaxBytes int64  `json:"segment_max_bytes"`
	MaxActorSize    int    `json:"max_actor_size"`
	MaxNodeIDSize   int    `json:"max_node_id_size"`
	MaxDocumentSize int    `json:"max_document_size"`
	MaxPayloadSize  int    `json:"max_payload_size"`
}

// Default returns a Manifest with default settings.
func Default() *Manifest {
	return &Manifest{
		Version:         syncwal.ManifestVersion,
		Durability:      wal.DurabilityFlush.String(),
		SegmentMaxBytes: wal.DefaultSegmentMaxBytes,
		MaxActorSize:    entry.MaxActorSize,
		MaxNodeIDSize:   entry.MaxNodeIDSize,
		MaxDocumentSize: entry.MaxDocumentSize,
		MaxPayloadSize:  entry.MaxPayloadSize,
	}
}

// Create writes a fresh manifest into dataDir. It fails if one already
// exists so that limits are never silently rewritten for an existing
// directory.
func Create(dataDir string, m *Manifest) error {
	manifestPath := filepath.Join(dataDir, ManifestFileName)

	if exists := helpers.Exists(manifestPath); exists {
		return &ManifestError{
			Kind: ManifestErrorKindAlreadyExists,
			Err:  fmt.Errorf("manifest already exists at %s", manifestPath),
		}
	}

	if m == nil {
		m = Default()
	}
	data, err := jsonutil.Marshal(m)
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindEncode, Err: err}
	}

	return writeFile(manifestPath, data)
}

// Open reads the manifest from dataDir.
func Open(dataDir string) (*Manifest, error) {
	manifestPath := filepath.Join(dataDir, ManifestFileName)

	if exists := helpers.Exists(manifestPath); !exists {
		return nil, &ManifestError{Kind: ManifestErrorKindNotFound, Err: fs.ErrNotExist}
	}

	m := &Manifest{}
	if err := jsonutil.ReadFileStrict(manifestPath, m); err != nil {
		return nil, &ManifestError{Kind: ManifestErrorKindDecode, Err: err}
	}

	if m.Version > syncwal.ManifestVersion {
		return nil, &ManifestError{
			Kind: ManifestErrorKindUnsupportedVersion,
			Err:  fmt.Errorf("manifest version %d is not supported", m.Version),
		}
	}

	return m, nil
}

// Save rewrites an existing manifest in dataDir.
func (m *Manifest) Save(dataDir string) error {
	manifestPath := filepath.Join(dataDir, ManifestFileName)

	if exists := helpers.Exists(manifestPath); !exists {
		return &ManifestError{Kind: ManifestErrorKindNotFound, Err: fs.ErrNotExist}
	}

	data, err := jsonutil.Marshal(m)
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindEncode, Err: err}
	}

	return writeFile(manifestPath, data)
}

func writeFile(filePath string, data []byte) error {
	if err := helpers.AtomicFileWrite(filePath, data); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Err: err}
	}
	f, err := os.Open(filepath.Dir(filePath)) //nolint:gosec
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Err: err}
	}
	defer func() { _ = f.Close() }()

	if err := f.Sync(); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Err: err}
	}
	return nil
}
