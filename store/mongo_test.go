package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"

	"github.com/fjperezpujalte/storiesviewer/model"
)

const testNamespace = "maps_db.maps"

func campusDocument(id string) bson.D {
	return bson.D{
		{Key: "id", Value: id},
		{Key: "name", Value: "Campus"},
		{Key: "image", Value: "campus.png"},
		{Key: "dimensions", Value: bson.A{800, 600}},
		{Key: "keypoints", Value: bson.A{
			bson.D{
				{Key: "id", Value: "kp-1"},
				{Key: "name", Value: "Gate"},
				{Key: "point", Value: bson.A{10, 20}},
				{Key: "content", Value: "Main gate"},
				{Key: "stories", Value: bson.A{}},
			},
		}},
		{Key: "stories", Value: bson.A{
			bson.D{{Key: "id", Value: "st-1"}, {Key: "content", Value: "Founded on a hill"}},
		}},
	}
}

func updated(n, modified int) bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: n},
		bson.E{Key: "nModified", Value: modified},
	)
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("ensureIndexes", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, s.ensureIndexes(ctx))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "createIndexes", evt.CommandName)
		unique := evt.Command.Lookup("indexes", "0", "unique")
		assert.True(mt, unique.Boolean())
		assert.Equal(mt, int32(1), evt.Command.Lookup("indexes", "1", "key", "name").Int32())
	})

	mt.Run("CreateMap", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		dims := model.Dimensions{800, 600}
		p := model.Point{10, 20}
		m, err := s.CreateMap(ctx, model.MapCreate{
			Name:       "Campus",
			Image:      "campus.png",
			Dimensions: &dims,
			Keypoints:  []model.KeypointCreate{{Name: "Gate", Point: &p}},
		})
		require.NoError(mt, err)
		assert.NotEmpty(mt, m.ID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "insert", evt.CommandName)
		doc := evt.Command.Lookup("documents", "0").Document()
		assert.Equal(mt, m.ID, doc.Lookup("id").StringValue())
		assert.Equal(mt, "Gate", doc.Lookup("keypoints", "0", "name").StringValue())
		assert.Equal(mt, bson.TypeArray, doc.Lookup("stories").Type)
	})

	mt.Run("CreateMap backend failure", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		dims := model.Dimensions{800, 600}
		_, err := s.CreateMap(ctx, model.MapCreate{Name: "Campus", Image: "campus.png", Dimensions: &dims})
		require.Error(mt, err)
		assert.True(mt, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("GetMap", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, campusDocument("m-1")))

		m, err := s.GetMap(ctx, "m-1")
		require.NoError(mt, err)
		require.NotNil(mt, m)
		assert.Equal(mt, model.Map{
			ID:         "m-1",
			Name:       "Campus",
			Image:      "campus.png",
			Dimensions: model.Dimensions{800, 600},
			Keypoints: []model.Keypoint{{
				ID:      "kp-1",
				Name:    "Gate",
				Point:   model.Point{10, 20},
				Content: "Main gate",
				Stories: []model.Story{},
			}},
			Stories: []model.Story{{ID: "st-1", Content: "Founded on a hill"}},
		}, *m)
	})

	mt.Run("GetMap not found", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch))

		m, err := s.GetMap(ctx, "missing")
		require.NoError(mt, err)
		assert.Nil(mt, m)
	})

	mt.Run("GetMap minimal keypoint schema", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, bson.D{
			{Key: "id", Value: "m-old"},
			{Key: "name", Value: "Old"},
			{Key: "image", Value: "old.png"},
			{Key: "dimensions", Value: bson.A{100, 50}},
			{Key: "keypoints", Value: bson.A{bson.D{{Key: "id", Value: "kp-old"}, {Key: "content", Value: "legacy"}}}},
			{Key: "stories", Value: bson.A{}},
		}))

		m, err := s.GetMap(ctx, "m-old")
		require.NoError(mt, err)
		require.NotNil(mt, m)
		require.Len(mt, m.Keypoints, 1)
		assert.Equal(mt, "legacy", m.Keypoints[0].Content)
		assert.Equal(mt, model.Point{}, m.Keypoints[0].Point)
		assert.Equal(mt, []model.Story{}, m.Keypoints[0].Stories)
	})

	mt.Run("GetAllMaps", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, testNamespace, mtest.FirstBatch, campusDocument("m-1")),
			mtest.CreateCursorResponse(0, testNamespace, mtest.NextBatch, campusDocument("m-2")),
		)

		maps, err := s.GetAllMaps(ctx)
		require.NoError(mt, err)
		require.Len(mt, maps, 2)
		assert.Equal(mt, "m-1", maps[0].ID)
		assert.Equal(mt, "m-2", maps[1].ID)
	})

	mt.Run("GetAllMaps empty", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch))

		maps, err := s.GetAllMaps(ctx)
		require.NoError(mt, err)
		assert.NotNil(mt, maps)
		assert.Empty(mt, maps)
	})

	mt.Run("DeleteMap", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		ok, err := s.DeleteMap(ctx, "m-1")
		require.NoError(mt, err)
		assert.True(mt, ok)

		ok, err = s.DeleteMap(ctx, "m-1")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("AddKeypoint", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(updated(1, 1))

		p := model.Point{10, 20}
		kp := model.KeypointCreate{Name: "Gate", Point: &p}.ToKeypoint()
		ok, err := s.AddKeypoint(ctx, "m-1", kp)
		require.NoError(mt, err)
		assert.True(mt, ok)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)
		assert.Equal(mt, "Gate", evt.Command.Lookup("updates", "0", "q", "keypoints.name", "$ne").StringValue())
		assert.Equal(mt, kp.ID, evt.Command.Lookup("updates", "0", "q", "keypoints.id", "$ne").StringValue())
		assert.Equal(mt, kp.ID, evt.Command.Lookup("updates", "0", "u", "$push", "keypoints", "id").StringValue())
	})

	mt.Run("AddKeypoint duplicate name", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, campusDocument("m-1")),
		)

		p := model.Point{10, 20}
		ok, err := s.AddKeypoint(ctx, "m-1", model.KeypointCreate{Name: "Gate", Point: &p}.ToKeypoint())
		assert.ErrorIs(mt, err, ErrDuplicateKeypointName)
		assert.False(mt, ok)
	})

	mt.Run("AddKeypoint duplicate id", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, campusDocument("m-1")),
		)

		p := model.Point{1, 1}
		kp := model.KeypointCreate{ID: "kp-1", Name: "Tower", Point: &p}.ToKeypoint()
		ok, err := s.AddKeypoint(ctx, "m-1", kp)
		assert.ErrorIs(mt, err, ErrDuplicateID)
		assert.False(mt, ok)
	})

	mt.Run("AddKeypoint with stories guards their ids", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(updated(1, 1))

		p := model.Point{1, 1}
		kp := model.KeypointCreate{
			Name:    "Tower",
			Point:   &p,
			Stories: []model.StoryCreate{{ID: "st-7", Content: "Tall"}},
		}.ToKeypoint()
		ok, err := s.AddKeypoint(ctx, "m-1", kp)
		require.NoError(mt, err)
		assert.True(mt, ok)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "st-7", evt.Command.Lookup("updates", "0", "q", "stories.id", "$nin", "0").StringValue())
		assert.Equal(mt, "st-7", evt.Command.Lookup("updates", "0", "q", "keypoints.stories.id", "$nin", "0").StringValue())
	})

	mt.Run("AddKeypoint missing map", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch),
		)

		p := model.Point{10, 20}
		ok, err := s.AddKeypoint(ctx, "missing", model.KeypointCreate{Name: "Gate", Point: &p}.ToKeypoint())
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("DeleteKeypoint", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(updated(1, 1), updated(1, 0))

		ok, err := s.DeleteKeypoint(ctx, "m-1", "kp-1")
		require.NoError(mt, err)
		assert.True(mt, ok)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "kp-1", evt.Command.Lookup("updates", "0", "u", "$pull", "keypoints", "id").StringValue())

		ok, err = s.DeleteKeypoint(ctx, "m-1", "kp-1")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("AddStory and DeleteStory", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(1, 1),
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch),
			updated(1, 1),
		)

		ok, err := s.AddStory(ctx, "m-1", model.Story{ID: "st-2", Content: "New"})
		require.NoError(mt, err)
		assert.True(mt, ok)

		ok, err = s.AddStory(ctx, "missing", model.Story{ID: "st-3", Content: "New"})
		require.NoError(mt, err)
		assert.False(mt, ok)

		ok, err = s.DeleteStory(ctx, "m-1", "st-2")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("AddStory duplicate id", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, campusDocument("m-1")),
		)

		ok, err := s.AddStory(ctx, "m-1", model.Story{ID: "st-1", Content: "Again"})
		assert.ErrorIs(mt, err, ErrDuplicateID)
		assert.False(mt, ok)

		started := mt.GetAllStartedEvents()
		require.NotEmpty(mt, started)
		q := started[0].Command.Lookup("updates", "0", "q")
		assert.Equal(mt, "st-1", q.Document().Lookup("stories.id", "$ne").StringValue())
		assert.Equal(mt, "st-1", q.Document().Lookup("keypoints.stories.id", "$ne").StringValue())
	})

	mt.Run("AddKeypointStory", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(updated(1, 1))

		ok, err := s.AddKeypointStory(ctx, "m-1", "kp-1", model.Story{ID: "st-9", Content: "History of the gate"})
		require.NoError(mt, err)
		assert.True(mt, ok)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "kp-1", evt.Command.Lookup("updates", "0", "q", "keypoints.id").StringValue())
		assert.Equal(mt, "st-9", evt.Command.Lookup("updates", "0", "q", "keypoints.stories.id", "$ne").StringValue())
		assert.Equal(mt, "st-9", evt.Command.Lookup("updates", "0", "u", "$push", "keypoints.$[kp].stories", "id").StringValue())
		assert.Equal(mt, "kp-1", evt.Command.Lookup("updates", "0", "arrayFilters", "0", "kp.id").StringValue())
	})

	mt.Run("AddKeypointStory missing keypoint", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, campusDocument("m-1")),
		)

		ok, err := s.AddKeypointStory(ctx, "m-1", "kp-x", model.Story{ID: "st-1", Content: "Lost"})
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("AddKeypointStory duplicate id", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(
			updated(0, 0),
			mtest.CreateCursorResponse(0, testNamespace, mtest.FirstBatch, campusDocument("m-1")),
		)

		ok, err := s.AddKeypointStory(ctx, "m-1", "kp-1", model.Story{ID: "st-1", Content: "Again"})
		assert.ErrorIs(mt, err, ErrDuplicateID)
		assert.False(mt, ok)
	})

	mt.Run("DeleteKeypointStory missing", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(updated(0, 0))

		ok, err := s.DeleteKeypointStory(ctx, "m-1", "kp-1", "st-9")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("update backend failure", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		ok, err := s.AddStory(ctx, "m-1", model.Story{ID: "st-2", Content: "New"})
		require.Error(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("Close without connection", func(mt *mtest.T) {
		s := newMongoStore(mt.Coll, zap.NewNop())
		assert.NoError(mt, s.Close())
		assert.NoError(mt, s.Close())
	})
}
