// Package store defines the persistence contract for maps and its backends.
package store

import (
	"context"
	"errors"

	"github.com/fjperezpujalte/storiesviewer/model"
)

// ErrDuplicateKeypointName is returned by AddKeypoint when the map already
// holds a keypoint with the same name.
var ErrDuplicateKeypointName = errors.New("keypoint name already used on this map")

// ErrDuplicateID is returned by the add operations when a caller-supplied
// keypoint or story id is already taken on the map.
var ErrDuplicateID = errors.New("id already used on this map")

// Store is the interface that all map backends must implement.
//
// A missing entity is never an error: lookups return nil and
// mutations return false. Errors are reserved for backend faults.
type Store interface {
	// CreateMap materializes the payload, assigning ids, and persists it.
	CreateMap(ctx context.Context, mc model.MapCreate) (model.Map, error)

	// GetMap returns a map by id, or nil if not found.
	GetMap(ctx context.Context, id string) (*model.Map, error)

	// GetAllMaps returns every stored map in no particular order.
	GetAllMaps(ctx context.Context) ([]model.Map, error)

	// DeleteMap removes a map with its keypoints and stories. Returns true if it existed.
	DeleteMap(ctx context.Context, id string) (bool, error)

	// AddKeypoint appends a keypoint to a map. Returns false if the map does not exist.
	AddKeypoint(ctx context.Context, mapID string, kp model.Keypoint) (bool, error)

	// DeleteKeypoint removes a keypoint. Returns false if the map or keypoint does not exist.
	DeleteKeypoint(ctx context.Context, mapID, keypointID string) (bool, error)

	// AddStory appends a map-level story. Returns false if the map does not exist.
	AddStory(ctx context.Context, mapID string, st model.Story) (bool, error)

	// DeleteStory removes a map-level story. Returns false if the map or story does not exist.
	DeleteStory(ctx context.Context, mapID, storyID string) (bool, error)

	// AddKeypointStory appends a story to a keypoint. Returns false if the map
	// or keypoint does not exist.
	AddKeypointStory(ctx context.Context, mapID, keypointID string, st model.Story) (bool, error)

	// DeleteKeypointStory removes a story from a keypoint. Returns false if the
	// map, keypoint or story does not exist.
	DeleteKeypointStory(ctx context.Context, mapID, keypointID, storyID string) (bool, error)

	// Close releases the backend. Calling it more than once is harmless.
	Close() error
}
