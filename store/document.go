package store

import "github.com/fjperezpujalte/storiesviewer/model"

// mapDocument is the persisted shape of a map, shared by every backend.
// Coordinates are stored as plain arrays and nested collections are never
// nil so that array updates ($push/$pull) always find an array.
type mapDocument struct {
	ID         string             `bson:"id" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Image      string             `bson:"image" json:"image"`
	Dimensions []int              `bson:"dimensions" json:"dimensions"`
	Keypoints  []keypointDocument `bson:"keypoints" json:"keypoints"`
	Stories    []storyDocument    `bson:"stories" json:"stories"`
}

type keypointDocument struct {
	ID      string          `bson:"id" json:"id"`
	Name    string          `bson:"name" json:"name"`
	Point   []int           `bson:"point" json:"point"`
	Content string          `bson:"content" json:"content"`
	Stories []storyDocument `bson:"stories" json:"stories"`
}

type storyDocument struct {
	ID      string `bson:"id" json:"id"`
	Content string `bson:"content" json:"content"`
}

func toDocument(m model.Map) mapDocument {
	keypoints := make([]keypointDocument, 0, len(m.Keypoints))
	for _, kp := range m.Keypoints {
		keypoints = append(keypoints, toKeypointDocument(kp))
	}
	return mapDocument{
		ID:         m.ID,
		Name:       m.Name,
		Image:      m.Image,
		Dimensions: []int{m.Dimensions.Width(), m.Dimensions.Height()},
		Keypoints:  keypoints,
		Stories:    toStoryDocuments(m.Stories),
	}
}

func toKeypointDocument(kp model.Keypoint) keypointDocument {
	return keypointDocument{
		ID:      kp.ID,
		Name:    kp.Name,
		Point:   []int{kp.Point.X(), kp.Point.Y()},
		Content: kp.Content,
		Stories: toStoryDocuments(kp.Stories),
	}
}

func toStoryDocument(st model.Story) storyDocument {
	return storyDocument{ID: st.ID, Content: st.Content}
}

func toStoryDocuments(stories []model.Story) []storyDocument {
	out := make([]storyDocument, 0, len(stories))
	for _, st := range stories {
		out = append(out, toStoryDocument(st))
	}
	return out
}

// toModel rebuilds the entity. Documents written with the older minimal
// schema (keypoints holding only id and content) decode with an empty name
// and a zero point.
func (d mapDocument) toModel() model.Map {
	keypoints := make([]model.Keypoint, 0, len(d.Keypoints))
	for _, kd := range d.Keypoints {
		keypoints = append(keypoints, model.Keypoint{
			ID:      kd.ID,
			Name:    kd.Name,
			Point:   model.Point(pair(kd.Point)),
			Content: kd.Content,
			Stories: toStories(kd.Stories),
		})
	}
	return model.Map{
		ID:         d.ID,
		Name:       d.Name,
		Image:      d.Image,
		Dimensions: model.Dimensions(pair(d.Dimensions)),
		Keypoints:  keypoints,
		Stories:    toStories(d.Stories),
	}
}

func toStories(docs []storyDocument) []model.Story {
	out := make([]model.Story, 0, len(docs))
	for _, sd := range docs {
		out = append(out, model.Story{ID: sd.ID, Content: sd.Content})
	}
	return out
}

func pair(v []int) [2]int {
	var p [2]int
	copy(p[:], v)
	return p
}

// clone returns a deep copy so callers never share slices with a backend.
func (d mapDocument) clone() mapDocument {
	out := d
	out.Dimensions = append([]int{}, d.Dimensions...)
	out.Stories = append([]storyDocument{}, d.Stories...)
	out.Keypoints = make([]keypointDocument, len(d.Keypoints))
	for i, kd := range d.Keypoints {
		kd.Point = append([]int{}, kd.Point...)
		kd.Stories = append([]storyDocument{}, kd.Stories...)
		out.Keypoints[i] = kd
	}
	return out
}
