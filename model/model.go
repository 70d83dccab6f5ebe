// Package model defines the map, keypoint and story entities and the payloads
// used to create them.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Point is a pixel location (x, y) inside a map image.
type Point [2]int

// X returns the horizontal coordinate.
func (p Point) X() int { return p[0] }

// Y returns the vertical coordinate.
func (p Point) Y() int { return p[1] }

// Dimensions is the (width, height) of a map image in pixels.
type Dimensions [2]int

// Width returns the image width.
func (d Dimensions) Width() int { return d[0] }

// Height returns the image height.
func (d Dimensions) Height() int { return d[1] }

// UnmarshalJSON accepts exactly two integers.
func (p *Point) UnmarshalJSON(b []byte) error {
	return decodePair(b, "point", (*[2]int)(p))
}

// UnmarshalJSON accepts exactly two integers.
func (d *Dimensions) UnmarshalJSON(b []byte) error {
	return decodePair(b, "dimensions", (*[2]int)(d))
}

// decodePair rejects arrays that are not exactly two long, which a plain
// [2]int would silently pad or truncate.
func decodePair(b []byte, field string, dst *[2]int) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var vals []int
	if err := json.Unmarshal(b, &vals); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if len(vals) != 2 {
		return fmt.Errorf("%s must have exactly 2 values, got %d", field, len(vals))
	}
	dst[0], dst[1] = vals[0], vals[1]
	return nil
}

// Story is a unit of narrative content attached to a map or a keypoint.
type Story struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Keypoint is a named location on a map.
type Keypoint struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Point   Point   `json:"point"`
	Content string  `json:"content"`
	Stories []Story `json:"stories"`
}

// Map is an image-backed canvas hosting keypoints and map-level stories.
type Map struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Image      string     `json:"image"`
	Dimensions Dimensions `json:"dimensions"`
	Keypoints  []Keypoint `json:"keypoints"`
	Stories    []Story    `json:"stories"`
}

// NewID returns a random identifier formatted as a canonical UUID string.
func NewID() string {
	return uuid.NewString()
}

// StoryCreate is the payload for creating a story.
type StoryCreate struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content" validate:"required"`
}

// ToStory materializes the payload, assigning an id when none was supplied.
func (sc StoryCreate) ToStory() Story {
	id := sc.ID
	if id == "" {
		id = NewID()
	}
	return Story{ID: id, Content: sc.Content}
}

// KeypointCreate is the payload for creating a keypoint. Point is a pointer
// so that a missing point can be told apart from (0, 0).
type KeypointCreate struct {
	ID      string        `json:"id,omitempty"`
	Name    string        `json:"name" validate:"required"`
	Point   *Point        `json:"point" validate:"required"`
	Content string        `json:"content,omitempty"`
	Stories []StoryCreate `json:"stories,omitempty" validate:"dive"`
}

// ToKeypoint materializes the payload. Missing content stays "" and missing
// stories become an empty list.
func (kc KeypointCreate) ToKeypoint() Keypoint {
	id := kc.ID
	if id == "" {
		id = NewID()
	}
	var p Point
	if kc.Point != nil {
		p = *kc.Point
	}
	return Keypoint{
		ID:      id,
		Name:    kc.Name,
		Point:   p,
		Content: kc.Content,
		Stories: toStories(kc.Stories),
	}
}

// MapCreate is the payload for creating a map.
type MapCreate struct {
	Name       string           `json:"name" validate:"required"`
	Image      string           `json:"image" validate:"required"`
	Dimensions *Dimensions      `json:"dimensions" validate:"required"`
	Keypoints  []KeypointCreate `json:"keypoints,omitempty" validate:"dive"`
	Stories    []StoryCreate    `json:"stories,omitempty" validate:"dive"`
}

// ToMap materializes the payload into a new map with a fresh id.
func (mc MapCreate) ToMap() Map {
	var dims Dimensions
	if mc.Dimensions != nil {
		dims = *mc.Dimensions
	}
	keypoints := make([]Keypoint, 0, len(mc.Keypoints))
	for _, kc := range mc.Keypoints {
		keypoints = append(keypoints, kc.ToKeypoint())
	}
	return Map{
		ID:         NewID(),
		Name:       mc.Name,
		Image:      mc.Image,
		Dimensions: dims,
		Keypoints:  keypoints,
		Stories:    toStories(mc.Stories),
	}
}

func toStories(in []StoryCreate) []Story {
	out := make([]Story, 0, len(in))
	for _, sc := range in {
		out = append(out, sc.ToStory())
	}
	return out
}

// FindKeypoint returns the index of the keypoint with the given id, or -1.
func (m *Map) FindKeypoint(id string) int {
	for i := range m.Keypoints {
		if m.Keypoints[i].ID == id {
			return i
		}
	}
	return -1
}

// HasKeypointNamed reports whether the map already holds a keypoint called name.
func (m *Map) HasKeypointNamed(name string) bool {
	for i := range m.Keypoints {
		if m.Keypoints[i].Name == name {
			return true
		}
	}
	return false
}

// HasStoryID reports whether id is taken by a map story or by a story on any
// of the map's keypoints.
func (m *Map) HasStoryID(id string) bool {
	if findStory(m.Stories, id) >= 0 {
		return true
	}
	for i := range m.Keypoints {
		if findStory(m.Keypoints[i].Stories, id) >= 0 {
			return true
		}
	}
	return false
}

// RemoveKeypoint drops the keypoint with the given id, keeping the order of
// the others. Returns true if one was removed.
func (m *Map) RemoveKeypoint(id string) bool {
	i := m.FindKeypoint(id)
	if i < 0 {
		return false
	}
	m.Keypoints = append(m.Keypoints[:i], m.Keypoints[i+1:]...)
	return true
}

// RemoveStory drops the map-level story with the given id.
func (m *Map) RemoveStory(id string) bool {
	return removeStory(&m.Stories, id)
}

// RemoveStory drops the keypoint story with the given id.
func (kp *Keypoint) RemoveStory(id string) bool {
	return removeStory(&kp.Stories, id)
}

func findStory(stories []Story, id string) int {
	for i := range stories {
		if stories[i].ID == id {
			return i
		}
	}
	return -1
}

func removeStory(stories *[]Story, id string) bool {
	i := findStory(*stories, id)
	if i < 0 {
		return false
	}
	*stories = append((*stories)[:i], (*stories)[i+1:]...)
	return true
}
