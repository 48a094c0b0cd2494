package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/agriassist/internal/models"
	"gopkg.in/yaml.v3"
)

// FormatVersion is bumped whenever the snapshot layout changes.
const FormatVersion = 1

const (
	manifestFile  = "manifest.yaml"
	documentsFile = "documents.json"
	vectorsFile   = "vectors.bin"
)

// Manifest describes a snapshot directory.
type Manifest struct {
	FormatVersion int       `yaml:"format_version"`
	Metric        string    `yaml:"metric"`
	Model         string    `yaml:"model"`
	Dimension     int       `yaml:"dimension"`
	Count         int       `yaml:"count"`
	Created       time.Time `yaml:"created"`
}

// Save writes the index as a snapshot directory at path, replacing any
// existing snapshot. Files are written to a temporary sibling directory and
// renamed into place, so a failed save leaves the previous snapshot intact.
func (ix *Index) Save(path string) error {
	path = filepath.Clean(path)
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create snapshot parent: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := ix.writeFiles(tmp); err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(path); err == nil {
		backup = fmt.Sprintf("%s.old-%d", path, time.Now().UnixNano())
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("move previous snapshot: %w", err)
		}
	}

	if err := os.Rename(tmp, path); err != nil {
		if backup != "" {
			_ = os.Rename(backup, path)
		}
		return fmt.Errorf("commit snapshot: %w", err)
	}
	committed = true

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

func (ix *Index) writeFiles(dir string) error {
	manifest := Manifest{
		FormatVersion: FormatVersion,
		Metric:        MetricCosine,
		Model:         ix.model,
		Dimension:     ix.dimension,
		Count:         len(ix.docs),
		Created:       time.Now().UTC(),
	}
	manifestData, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), manifestData, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	docsData, err := json.Marshal(ix.docs)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, documentsFile), docsData, 0o644); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}

	buf := make([]byte, 0, len(ix.vectors)*ix.dimension*4)
	for _, v := range ix.vectors {
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		}
	}
	if err := os.WriteFile(filepath.Join(dir, vectorsFile), buf, 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest of the snapshot at path.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(path, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return m, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
	}
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// Load reads the snapshot at path. expectedDimension is the dimension of the
// currently configured embedder; zero skips the check.
func Load(path string, expectedDimension int) (*Index, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
	}

	m, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if m.FormatVersion != FormatVersion || m.Metric != MetricCosine {
		return nil, fmt.Errorf("%w: snapshot format %d/%s, supported %d/%s",
			ErrIndexVersionMismatch, m.FormatVersion, m.Metric, FormatVersion, MetricCosine)
	}
	if expectedDimension != 0 && m.Dimension != expectedDimension {
		return nil, fmt.Errorf("%w: snapshot dimension %d (model %s), embedder dimension %d",
			ErrIndexVersionMismatch, m.Dimension, m.Model, expectedDimension)
	}

	docsData, err := os.ReadFile(filepath.Join(path, documentsFile))
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	var docs []models.EncodedDocument
	if err := json.Unmarshal(docsData, &docs); err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(path, vectorsFile))
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	if len(docs) != m.Count || len(raw) != m.Count*m.Dimension*4 {
		return nil, fmt.Errorf("corrupt snapshot %s: manifest count %d, %d documents, %d vector bytes",
			path, m.Count, len(docs), len(raw))
	}

	// Stored vectors are already unit length and are kept bit-for-bit so
	// rankings match the index that was saved.
	vectors := make([][]float32, m.Count)
	for i := range vectors {
		v := make([]float32, m.Dimension)
		for j := range v {
			off := (i*m.Dimension + j) * 4
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		}
		vectors[i] = v
	}

	return &Index{
		model:     m.Model,
		dimension: m.Dimension,
		docs:      docs,
		vectors:   vectors,
	}, nil
}
