package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fortuna/almanac/internal/fixture"
)

// Store persists the historical dataset.
type Store interface {
	// Load returns the stored dataset, or an empty one when nothing has been
	// stored yet. Season labels come back canonical.
	Load(ctx context.Context) (fixture.Dataset, error)
	// Save replaces the stored dataset. Readers never observe a partial write.
	Save(ctx context.Context, ds fixture.Dataset) error
	// Location names where the dataset lives, for operator messages.
	Location() string
}

// ErrUnsupportedFormat is returned for dataset files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

type codec interface {
	read(r io.Reader) (fixture.Dataset, error)
	write(w io.Writer, ds fixture.Dataset) error
}

func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsxCodec{}, nil
	case ".csv":
		return csvCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// FileStore keeps the dataset in a single spreadsheet or CSV file. The format
// follows the file extension.
type FileStore struct {
	path  string
	codec codec
}

// NewFileStore opens a store at path. The file does not need to exist.
func NewFileStore(path string) (*FileStore, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, codec: c}, nil
}

// Location returns the file path.
func (s *FileStore) Location() string {
	return s.path
}

// Exists reports whether the file is present.
func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", s.path, err)
	}
}

// Load reads the file. A missing file is an empty dataset.
func (s *FileStore) Load(ctx context.Context) (fixture.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fixture.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	ds, err := s.codec.read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return ds.NormalizeSeasons(), nil
}

// Save writes the dataset to a temporary file next to the target and
// renames it into place.
func (s *FileStore) Save(ctx context.Context, ds fixture.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := s.codec.write(tmp, ds); err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename into %s: %w", s.path, err)
	}
	committed = true
	return nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (s *FileStore) Remove(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

// SiblingPath returns path with its extension replaced, e.g. the CSV mirror
// of an xlsx dataset.
func SiblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
