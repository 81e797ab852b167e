// Package analytics serves the pre-computed catalogue analytics document.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// MsgFileNotFound is the error text for a missing analytics file.
const MsgFileNotFound = "Analytics file not found."

// FileStore reads the analytics document from disk on every call, so a
// regenerated file is picked up without a restart.
type FileStore struct {
	path string
}

// NewFileStore returns a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Summary returns the document verbatim. Every failure, including a
// document that is itself an {"error": ...} object, is a not-found error.
func (s *FileStore) Summary(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound(MsgFileNotFound)
	}
	if err != nil {
		return nil, apperrors.NotFound(err.Error())
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NotFound(fmt.Sprintf("invalid analytics file: %v", err))
	}
	if obj, ok := doc.(map[string]any); ok {
		if msg, has := obj["error"]; has {
			return nil, apperrors.NotFound(fmt.Sprint(msg))
		}
	}
	return json.RawMessage(bytes.TrimSpace(raw)), nil
}

// Check reports whether the file exists and is readable.
func (s *FileStore) Check(context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("analytics file: %w", err)
	}
	return f.Close()
}
