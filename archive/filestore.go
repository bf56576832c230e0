package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const transcriptExt = ".json"

type fileStore struct {
	root string
}

// NewFileStore creates a Store that writes one JSON file per session id
// under root.
func NewFileStore(root string) Store {
	return &fileStore{root: root}
}

func (s *fileStore) Save(_ context.Context, t Transcript) error {
	if t.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrSaveFailed)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	// Write to a temp file and rename so readers never see a partial
	// transcript.
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if err := os.Rename(tmpName, s.path(t.SessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

func (s *fileStore) Load(_ context.Context, sessionID string) (Transcript, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return Transcript{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return Transcript{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}
	return t, nil
}

func (s *fileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, transcriptExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, transcriptExt))
	}
	return ids, nil
}

func (s *fileStore) path(sessionID string) string {
	// Session ids are client-supplied; flatten anything path-like.
	safe := strings.NewReplacer("/", "_", string(filepath.Separator), "_", "..", "_").Replace(sessionID)
	return filepath.Join(s.root, safe+transcriptExt)
}
