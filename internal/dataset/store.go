package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/model"
)

// ErrIO marks failures reading or writing the dataset file.
var ErrIO = eris.New("dataset: io error")

func ioErr(action, path string, err error) error {
	return eris.Wrapf(ErrIO, "%s %s: %v", action, path, err)
}

// FileStore persists the canonical dataset as a single JSON array.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the dataset file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the dataset file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the whole dataset. A missing file is an empty dataset.
func (s *FileStore) Load(ctx context.Context) ([]model.AddressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := readRecords(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.AddressRecord{}, nil
	}
	return records, err
}

// Save replaces the dataset with records. Readers see either the previous
// file or the new one, never a partial write.
func (s *FileStore) Save(ctx context.Context, records []model.AddressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeRecords(s.path, records)
}

// ReadBatch reads an exported batch file. Unlike Load a missing file is an
// error.
func ReadBatch(path string) ([]model.AddressRecord, error) {
	records, err := readRecords(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(err, "dataset: batch %s", path)
	}
	return records, err
}

// WriteBatch exports records to path using the dataset file format.
func WriteBatch(path string, records []model.AddressRecord) error {
	return writeRecords(path, records)
}

func readRecords(path string) ([]model.AddressRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, ioErr("read", path, err)
	}
	records := []model.AddressRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, ioErr("decode", path, err)
	}
	return records, nil
}

func writeRecords(path string, records []model.AddressRecord) error {
	if records == nil {
		records = []model.AddressRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return ioErr("encode", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioErr("mkdir", dir, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return ioErr("write", path, err)
	}
	return nil
}

// writeAtomic writes data to a temp file next to dest, syncs it and renames
// it over dest.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = syncDir(dir)
	return nil
}

// syncDir fsyncs a directory so the rename survives a crash. Best effort.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return f.Sync()
}
