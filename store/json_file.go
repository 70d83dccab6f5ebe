package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// jsonFileDocuments stores every map in a single JSON file, keyed by id:
//
//	{
//	  "<map id>": {"id": "...", "name": "...", "keypoints": [...], ...},
//	  ...
//	}
//
// Each write rewrites the whole file through a temp file and a rename.
type jsonFileDocuments struct {
	mu   sync.RWMutex
	path string
}

// NewJsonFileStore returns a Store persisted to the JSON file at path.
// The parent directory is created if needed; the file itself is created on
// first write.
func NewJsonFileStore(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return newDocumentStore(&jsonFileDocuments{path: path}), nil
}

func (s *jsonFileDocuments) loadFile() (map[string]mapDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]mapDocument{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return map[string]mapDocument{}, nil
	}
	var result map[string]mapDocument
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if result == nil {
		result = map[string]mapDocument{}
	}
	return result, nil
}

func (s *jsonFileDocuments) saveFile(maps map[string]mapDocument) error {
	b, err := json.MarshalIndent(maps, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *jsonFileDocuments) load(_ context.Context, id string) (*mapDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maps, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	doc, ok := maps[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *jsonFileDocuments) loadAll(_ context.Context) ([]mapDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maps, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	result := make([]mapDocument, 0, len(maps))
	for _, doc := range maps {
		result = append(result, doc)
	}
	return result, nil
}

func (s *jsonFileDocuments) save(_ context.Context, doc mapDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps, err := s.loadFile()
	if err != nil {
		return err
	}
	maps[doc.ID] = doc
	return s.saveFile(maps)
}

func (s *jsonFileDocuments) remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps, err := s.loadFile()
	if err != nil {
		return false, err
	}
	if _, ok := maps[id]; !ok {
		return false, nil
	}
	delete(maps, id)
	if err := s.saveFile(maps); err != nil {
		return false, err
	}
	return true, nil
}

func (s *jsonFileDocuments) close() error { return nil }
