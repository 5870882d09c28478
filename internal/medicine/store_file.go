package medicine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	filePerm   = 0o644
	jsonIndent = "    "
)

// FileStore keeps the collection in a single JSON document.
type FileStore struct {
	path    string
	log     *zap.Logger
	metrics *StoreMetrics
}

func NewFileStore(path string, log *zap.Logger, metrics *StoreMetrics) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log, metrics: metrics}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", dir)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context) (Collection, error) {
	if err := ctx.Err(); err != nil {
		return Collection{}, err
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyCollection(), nil
	}
	if err != nil {
		s.fallback("read data file failed", err)
		return emptyCollection(), nil
	}

	c, err := decodeCollection(b)
	if err != nil {
		s.fallback("data file is not a valid collection", err)
		return emptyCollection(), nil
	}
	return c, nil
}

// Save replaces the document through a temp file and rename, so a concurrent
// Load sees either the old or the new content.
func (s *FileStore) Save(ctx context.Context, c Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := encodeCollection(c)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, b, filePerm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) fallback(msg string, err error) {
	s.log.Warn(msg, zap.String("path", s.path), zap.Error(err))
	s.metrics.loadFallback()
}

func decodeCollection(b []byte) (Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(b))

	var c Collection
	if err := dec.Decode(&c); err != nil {
		return Collection{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Collection{}, errors.New("extra data after json document")
	}

	if c.Medicines == nil {
		c.Medicines = []Medicine{}
	}
	return c, nil
}

func encodeCollection(c Collection) ([]byte, error) {
	if c.Medicines == nil {
		c.Medicines = []Medicine{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
