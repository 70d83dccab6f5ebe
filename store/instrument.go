package store

import (
	"context"
	"errors"
	"time"

	"github.com/fjperezpujalte/storiesviewer/metrics"
	"github.com/fjperezpujalte/storiesviewer/model"
)

// Outcome labels recorded for every storage operation.
const (
	statusOK       = "ok"
	statusNotFound = "not_found"
	statusRejected = "rejected"
	statusError    = "error"
)

type instrumentedStore struct {
	next    Store
	metrics *metrics.Collector
}

// Instrument wraps s so that every operation is counted and timed.
func Instrument(s Store, c *metrics.Collector) Store {
	return &instrumentedStore{next: s, metrics: c}
}

func (s *instrumentedStore) observe(op string, start time.Time, found bool, err error) {
	status := statusOK
	switch {
	case errors.Is(err, ErrDuplicateKeypointName), errors.Is(err, ErrDuplicateID):
		status = statusRejected
	case err != nil:
		status = statusError
	case !found:
		status = statusNotFound
	}
	s.metrics.ObserveStore(op, status, time.Since(start))
}

func (s *instrumentedStore) CreateMap(ctx context.Context, mc model.MapCreate) (model.Map, error) {
	start := time.Now()
	m, err := s.next.CreateMap(ctx, mc)
	s.observe("create_map", start, true, err)
	return m, err
}

func (s *instrumentedStore) GetMap(ctx context.Context, id string) (*model.Map, error) {
	start := time.Now()
	m, err := s.next.GetMap(ctx, id)
	s.observe("get_map", start, m != nil, err)
	return m, err
}

func (s *instrumentedStore) GetAllMaps(ctx context.Context) ([]model.Map, error) {
	start := time.Now()
	maps, err := s.next.GetAllMaps(ctx)
	s.observe("get_all_maps", start, true, err)
	return maps, err
}

func (s *instrumentedStore) DeleteMap(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := s.next.DeleteMap(ctx, id)
	s.observe("delete_map", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) AddKeypoint(ctx context.Context, mapID string, kp model.Keypoint) (bool, error) {
	start := time.Now()
	ok, err := s.next.AddKeypoint(ctx, mapID, kp)
	s.observe("add_keypoint", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) DeleteKeypoint(ctx context.Context, mapID, keypointID string) (bool, error) {
	start := time.Now()
	ok, err := s.next.DeleteKeypoint(ctx, mapID, keypointID)
	s.observe("delete_keypoint", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) AddStory(ctx context.Context, mapID string, st model.Story) (bool, error) {
	start := time.Now()
	ok, err := s.next.AddStory(ctx, mapID, st)
	s.observe("add_story", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) DeleteStory(ctx context.Context, mapID, storyID string) (bool, error) {
	start := time.Now()
	ok, err := s.next.DeleteStory(ctx, mapID, storyID)
	s.observe("delete_story", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) AddKeypointStory(ctx context.Context, mapID, keypointID string, st model.Story) (bool, error) {
	start := time.Now()
	ok, err := s.next.AddKeypointStory(ctx, mapID, keypointID, st)
	s.observe("add_keypoint_story", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) DeleteKeypointStory(ctx context.Context, mapID, keypointID, storyID string) (bool, error) {
	start := time.Now()
	ok, err := s.next.DeleteKeypointStory(ctx, mapID, keypointID, storyID)
	s.observe("delete_keypoint_story", start, ok, err)
	return ok, err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
