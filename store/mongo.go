package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fjperezpujalte/storiesviewer/model"
)

const mongoTimeout = 10 * time.Second

// MongoOptions locates the collection holding map documents.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one document per map in a MongoDB collection. Keypoint
// and story mutations are single-document $push/$pull updates, so no
// in-process locking is needed.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects, verifies the connection and ensures the collection
// indexes exist.
func NewMongoStore(ctx context.Context, opts MongoOptions, logger *zap.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := newMongoStore(client.Database(opts.Database).Collection(opts.Collection), logger)
	s.client = client
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Info("Connected to MongoDB",
		zap.String("database", opts.Database),
		zap.String("collection", opts.Collection),
	)
	return s, nil
}

func newMongoStore(coll *mongo.Collection, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{coll: coll, logger: logger}
}

// ensureIndexes creates a unique index on id and a plain one on name.
// Re-running it against an indexed collection is a no-op.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create map indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateMap(ctx context.Context, mc model.MapCreate) (model.Map, error) {
	m := mc.ToMap()
	if _, err := s.coll.InsertOne(ctx, toDocument(m)); err != nil {
		return model.Map{}, fmt.Errorf("insert map: %w", err)
	}
	return m, nil
}

func (s *MongoStore) GetMap(ctx context.Context, id string) (*model.Map, error) {
	var doc mapDocument
	err := s.coll.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find map %s: %w", id, err)
	}
	m := doc.toModel()
	return &m, nil
}

func (s *MongoStore) GetAllMaps(ctx context.Context) ([]model.Map, error) {
	cursor, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find maps: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mapDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode maps: %w", err)
	}
	maps := make([]model.Map, 0, len(docs))
	for _, doc := range docs {
		maps = append(maps, doc.toModel())
	}
	return maps, nil
}

func (s *MongoStore) DeleteMap(ctx context.Context, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, fmt.Errorf("delete map %s: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}

// AddKeypoint pushes the keypoint only when neither its name, its id nor any
// of its story ids is already on the map. When nothing was modified, the map
// is read back to tell a missing map apart from a conflict.
func (s *MongoStore) AddKeypoint(ctx context.Context, mapID string, kp model.Keypoint) (bool, error) {
	filter := bson.M{
		"id":             mapID,
		"keypoints.name": bson.M{"$ne": kp.Name},
		"keypoints.id":   bson.M{"$ne": kp.ID},
	}
	if len(kp.Stories) > 0 {
		ids := make([]string, 0, len(kp.Stories))
		for _, st := range kp.Stories {
			ids = append(ids, st.ID)
		}
		filter["stories.id"] = bson.M{"$nin": ids}
		filter["keypoints.stories.id"] = bson.M{"$nin": ids}
	}
	update := bson.M{"$push": bson.M{"keypoints": toKeypointDocument(kp)}}
	ok, err := s.modify(ctx, filter, update)
	if err != nil || ok {
		return ok, err
	}
	return s.explainUnmodified(ctx, mapID, func(m *model.Map) error {
		return keypointConflict(m, kp)
	})
}

func (s *MongoStore) DeleteKeypoint(ctx context.Context, mapID, keypointID string) (bool, error) {
	return s.modify(ctx,
		bson.M{"id": mapID},
		bson.M{"$pull": bson.M{"keypoints": bson.M{"id": keypointID}}},
	)
}

func (s *MongoStore) AddStory(ctx context.Context, mapID string, st model.Story) (bool, error) {
	ok, err := s.modify(ctx,
		storyFreeFilter(bson.M{"id": mapID}, st.ID),
		bson.M{"$push": bson.M{"stories": toStoryDocument(st)}},
	)
	if err != nil || ok {
		return ok, err
	}
	return s.explainUnmodified(ctx, mapID, func(m *model.Map) error {
		return storyConflict(m, st)
	})
}

func (s *MongoStore) DeleteStory(ctx context.Context, mapID, storyID string) (bool, error) {
	return s.modify(ctx,
		bson.M{"id": mapID},
		bson.M{"$pull": bson.M{"stories": bson.M{"id": storyID}}},
	)
}

// AddKeypointStory targets the keypoint through an array filter, since the
// story id guard also matches on the keypoints array and would make the
// positional operator ambiguous.
func (s *MongoStore) AddKeypointStory(ctx context.Context, mapID, keypointID string, st model.Story) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		storyFreeFilter(bson.M{"id": mapID, "keypoints.id": keypointID}, st.ID),
		bson.M{"$push": bson.M{"keypoints.$[kp].stories": toStoryDocument(st)}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"kp.id": keypointID}},
		}),
	)
	if err != nil {
		return false, fmt.Errorf("update map %s: %w", mapID, err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	return s.explainUnmodified(ctx, mapID, func(m *model.Map) error {
		if m.FindKeypoint(keypointID) < 0 {
			return nil
		}
		return storyConflict(m, st)
	})
}

func (s *MongoStore) DeleteKeypointStory(ctx context.Context, mapID, keypointID, storyID string) (bool, error) {
	return s.modify(ctx,
		bson.M{"id": mapID, "keypoints.id": keypointID},
		bson.M{"$pull": bson.M{"keypoints.$.stories": bson.M{"id": storyID}}},
	)
}

// storyFreeFilter extends filter so it only matches maps where storyID is
// not yet used by a map story or a keypoint story.
func storyFreeFilter(filter bson.M, storyID string) bson.M {
	filter["stories.id"] = bson.M{"$ne": storyID}
	filter["keypoints.stories.id"] = bson.M{"$ne": storyID}
	return filter
}

// explainUnmodified reads the map after a guarded update matched nothing.
// A missing map is (false, nil); otherwise conflict decides the error.
func (s *MongoStore) explainUnmodified(ctx context.Context, mapID string, conflict func(m *model.Map) error) (bool, error) {
	m, err := s.GetMap(ctx, mapID)
	if err != nil || m == nil {
		return false, err
	}
	return false, conflict(m)
}

// modify runs a single-document update and reports whether it changed anything.
func (s *MongoStore) modify(ctx context.Context, filter, update bson.M) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("update map %v: %w", filter["id"], err)
	}
	return res.ModifiedCount > 0, nil
}

// Close disconnects the client. It is a no-op when the store never connected.
func (s *MongoStore) Close() error {
	s.closeOnce.Do(func() {
		if s.client == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
		defer cancel()
		s.closeErr = s.client.Disconnect(ctx)
		if s.closeErr == nil {
			s.logger.Info("Disconnected from MongoDB")
		}
	})
	return s.closeErr
}
