package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore is a flat directory of scraped documents.
type LocalStore interface {
	// Dir returns the directory backing the store.
	Dir() string

	// EnsureDir creates the store directory, including parents, if it is missing.
	EnsureDir() error

	// List returns a sorted list of all files in the store.
	List() ([]string, error)

	Contains(name string) (bool, error)

	// Store writes content under name, replacing any existing file.
	Store(name string, content io.Reader) error
}

type FileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) *FileStore {
	return &FileStore{
		dataDir: dataDir,
	}
}

func (fs *FileStore) Dir() string {
	return fs.dataDir
}

func (fs *FileStore) EnsureDir() error {
	if err := os.MkdirAll(fs.dataDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", fs.dataDir)
	}

	return nil
}

func (fs *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}

func (fs *FileStore) Contains(name string) (bool, error) {
	path, err := fs.path(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (fs *FileStore) Store(name string, content io.Reader) error {
	path, err := fs.path(name)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to write file")
	}

	return errors.Wrap(file.Close(), "failed to close file")
}

// path joins name onto the store directory. Names must be flat.
func (fs *FileStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid file name %q", name)
	}

	return filepath.Join(fs.dataDir, name), nil
}
