package store

import (
	"context"
	"sync"

	"github.com/fjperezpujalte/storiesviewer/model"
)

// documents is the key/value contract the embedded backends (memory, file,
// sqlite, badger) implement. load returns nil when the id is unknown.
type documents interface {
	load(ctx context.Context, id string) (*mapDocument, error)
	loadAll(ctx context.Context) ([]mapDocument, error)
	save(ctx context.Context, doc mapDocument) error
	remove(ctx context.Context, id string) (bool, error)
	close() error
}

// documentStore implements Store on top of a documents backend. Mutations
// are read-modify-write of the whole map document, serialized by mu, which
// gives the same per-map atomicity MongoDB provides with $push/$pull.
type documentStore struct {
	mu   sync.Mutex
	docs documents

	closeOnce sync.Once
	closeErr  error
}

func newDocumentStore(docs documents) *documentStore {
	return &documentStore{docs: docs}
}

func (s *documentStore) CreateMap(ctx context.Context, mc model.MapCreate) (model.Map, error) {
	m := mc.ToMap()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.docs.save(ctx, toDocument(m)); err != nil {
		return model.Map{}, err
	}
	return m, nil
}

func (s *documentStore) GetMap(ctx context.Context, id string) (*model.Map, error) {
	doc, err := s.docs.load(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	m := doc.toModel()
	return &m, nil
}

func (s *documentStore) GetAllMaps(ctx context.Context) ([]model.Map, error) {
	docs, err := s.docs.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	maps := make([]model.Map, 0, len(docs))
	for _, doc := range docs {
		maps = append(maps, doc.toModel())
	}
	return maps, nil
}

func (s *documentStore) DeleteMap(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs.remove(ctx, id)
}

func (s *documentStore) AddKeypoint(ctx context.Context, mapID string, kp model.Keypoint) (bool, error) {
	return s.update(ctx, mapID, func(m *model.Map) (bool, error) {
		if err := keypointConflict(m, kp); err != nil {
			return false, err
		}
		if kp.Stories == nil {
			kp.Stories = []model.Story{}
		}
		m.Keypoints = append(m.Keypoints, kp)
		return true, nil
	})
}

func (s *documentStore) DeleteKeypoint(ctx context.Context, mapID, keypointID string) (bool, error) {
	return s.update(ctx, mapID, func(m *model.Map) (bool, error) {
		return m.RemoveKeypoint(keypointID), nil
	})
}

func (s *documentStore) AddStory(ctx context.Context, mapID string, st model.Story) (bool, error) {
	return s.update(ctx, mapID, func(m *model.Map) (bool, error) {
		if err := storyConflict(m, st); err != nil {
			return false, err
		}
		m.Stories = append(m.Stories, st)
		return true, nil
	})
}

func (s *documentStore) DeleteStory(ctx context.Context, mapID, storyID string) (bool, error) {
	return s.update(ctx, mapID, func(m *model.Map) (bool, error) {
		return m.RemoveStory(storyID), nil
	})
}

func (s *documentStore) AddKeypointStory(ctx context.Context, mapID, keypointID string, st model.Story) (bool, error) {
	return s.update(ctx, mapID, func(m *model.Map) (bool, error) {
		i := m.FindKeypoint(keypointID)
		if i < 0 {
			return false, nil
		}
		if err := storyConflict(m, st); err != nil {
			return false, err
		}
		m.Keypoints[i].Stories = append(m.Keypoints[i].Stories, st)
		return true, nil
	})
}

func (s *documentStore) DeleteKeypointStory(ctx context.Context, mapID, keypointID, storyID string) (bool, error) {
	return s.update(ctx, mapID, func(m *model.Map) (bool, error) {
		i := m.FindKeypoint(keypointID)
		if i < 0 {
			return false, nil
		}
		return m.Keypoints[i].RemoveStory(storyID), nil
	})
}

func (s *documentStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.docs.close()
	})
	return s.closeErr
}

// update loads a map, applies fn and writes the result back when fn reports
// a change. A missing map yields false without calling fn.
func (s *documentStore) update(ctx context.Context, mapID string, fn func(m *model.Map) (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.docs.load(ctx, mapID)
	if err != nil || doc == nil {
		return false, err
	}
	m := doc.toModel()
	changed, err := fn(&m)
	if err != nil || !changed {
		return false, err
	}
	if err := s.docs.save(ctx, toDocument(m)); err != nil {
		return false, err
	}
	return true, nil
}

// keypointConflict reports why kp cannot join m, or nil when it can.
func keypointConflict(m *model.Map, kp model.Keypoint) error {
	if m.HasKeypointNamed(kp.Name) {
		return ErrDuplicateKeypointName
	}
	if m.FindKeypoint(kp.ID) >= 0 {
		return ErrDuplicateID
	}
	for _, st := range kp.Stories {
		if m.HasStoryID(st.ID) {
			return ErrDuplicateID
		}
	}
	return nil
}

// storyConflict returns ErrDuplicateID when st's id is already on m.
func storyConflict(m *model.Map, st model.Story) error {
	if m.HasStoryID(st.ID) {
		return ErrDuplicateID
	}
	return nil
}
