package activity

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/pkg/types"
)

// MongoConfig holds the MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoLog stores one document per activity in a MongoDB collection.
type MongoLog struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoLog connects to MongoDB and ensures the correlationId index exists.
func NewMongoLog(ctx context.Context, cfg MongoConfig) (*MongoLog, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeRecordFailed, "connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeRecordFailed, "ping", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "correlationId", Value: 1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeRecordFailed, "create index", err)
	}

	return &MongoLog{client: client, coll: coll, now: time.Now}, nil
}

// Record implements Log.
func (l *MongoLog) Record(ctx context.Context, a types.Activity) error {
	if a.CorrelationID == "" {
		return benchErrors.NewActivityLogError(benchErrors.CodeRecordFailed, "activity has no correlation id", nil)
	}
	ts := l.now().UTC()
	a.CreatedAt = ts
	a.UpdatedAt = ts
	if _, err := l.coll.InsertOne(ctx, a); err != nil {
		return benchErrors.NewActivityLogError(benchErrors.CodeRecordFailed, "insert activity", err)
	}
	return nil
}

// groupStage is the $group shared by the list and detail pipelines.
// Input must be sorted by createdAt descending.
func groupStage(extra bson.D) bson.D {
	fields := bson.D{
		{Key: "_id", Value: bson.D{{Key: "correlationId", Value: "$correlationId"}}},
		{Key: "queryName", Value: bson.D{{Key: "$first", Value: "$queryName"}}},
		{Key: "newestAt", Value: bson.D{{Key: "$first", Value: "$createdAt"}}},
		{Key: "oldestAt", Value: bson.D{{Key: "$last", Value: "$createdAt"}}},
		{Key: "totalActivities", Value: bson.D{{Key: "$sum", Value: 1}}},
		{Key: "anyFailure", Value: bson.D{{Key: "$max", Value: bson.D{
			{Key: "$cond", Value: bson.A{"$success", false, true}},
		}}}},
		{Key: "scales", Value: bson.D{{Key: "$addToSet", Value: "$datasetScale"}}},
	}
	fields = append(fields, extra...)
	return bson.D{{Key: "$group", Value: fields}}
}

var (
	sortNewestStage   = bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}}
	promoteIDStage    = bson.D{{Key: "$addFields", Value: bson.D{{Key: "correlationId", Value: "$_id.correlationId"}}}}
	unsetIDStage      = bson.D{{Key: "$unset", Value: "_id"}}
	sortedScalesStage = bson.D{{Key: "$set", Value: bson.D{{Key: "scales", Value: bson.D{
		{Key: "$sortArray", Value: bson.D{{Key: "input", Value: "$scales"}, {Key: "sortBy", Value: 1}}},
	}}}}}
)

// ListPipeline builds the correlation list aggregation.
func ListPipeline(limit int) mongo.Pipeline {
	return mongo.Pipeline{
		sortNewestStage,
		groupStage(nil),
		promoteIDStage,
		unsetIDStage,
		// Keep experiments that span more than one dataset scale.
		{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$gt", Value: bson.A{bson.D{{Key: "$size", Value: "$scales"}}, 1}},
		}}}}},
		sortedScalesStage,
		{{Key: "$sort", Value: bson.D{{Key: "newestAt", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
}

// engineStatement picks a statement field from the activity at index among
// one engine's entries of the newest-first activities array.
func engineStatement(engine types.Engine, field string, index int) bson.D {
	return bson.D{{Key: "$let", Value: bson.D{
		{Key: "vars", Value: bson.D{{Key: "a", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{
			bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: "$activities"},
				{Key: "as", Value: "x"},
				{Key: "cond", Value: bson.D{{Key: "$eq", Value: bson.A{"$$x.engine", string(engine)}}}},
			}}},
			index,
		}}}}}},
		{Key: "in", Value: "$$a." + field},
	}}}
}

// DetailPipeline builds the single-correlation aggregation.
func DetailPipeline(correlationID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "correlationId", Value: correlationID}}}},
		sortNewestStage,
		groupStage(bson.D{
			{Key: "activities", Value: bson.D{{Key: "$push", Value: "$$ROOT"}}},
		}),
		promoteIDStage,
		unsetIDStage,
		sortedScalesStage,
		{{Key: "$set", Value: bson.D{{Key: "activities", Value: bson.D{
			{Key: "$sortArray", Value: bson.D{
				{Key: "input", Value: "$activities"},
				{Key: "sortBy", Value: bson.D{{Key: "createdAt", Value: -1}}},
			}},
		}}}}},
		{{Key: "$set", Value: bson.D{
			{Key: "sqlQuery", Value: engineStatement(types.EngineSQLite, "sqliteExplain", -1)},
			{Key: "neo4jQuery", Value: engineStatement(types.EngineNeo4j, "neo4jProfile", 0)},
		}}},
	}
}

// ListCorrelations implements Log.
func (l *MongoLog) ListCorrelations(ctx context.Context, limit int) ([]types.Correlation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	cur, err := l.coll.Aggregate(ctx, ListPipeline(limit))
	if err != nil {
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeAggregateFailed, "list correlations", err)
	}
	var out []types.Correlation
	if err := cur.All(ctx, &out); err != nil {
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeAggregateFailed, "decode correlations", err)
	}
	return out, nil
}

// GetCorrelation implements Log.
func (l *MongoLog) GetCorrelation(ctx context.Context, correlationID string) (*types.Correlation, error) {
	cur, err := l.coll.Aggregate(ctx, DetailPipeline(correlationID))
	if err != nil {
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeAggregateFailed, "get correlation", err)
	}
	var out []types.Correlation
	if err := cur.All(ctx, &out); err != nil {
		return nil, benchErrors.NewActivityLogError(benchErrors.CodeAggregateFailed, "decode correlation", err)
	}
	if len(out) == 0 {
		return nil, benchErrors.NewNotFoundError(benchErrors.CodeCorrelationNotFound,
			fmt.Sprintf("correlation %s not found", correlationID))
	}
	return &out[0], nil
}

// Close implements Log.
func (l *MongoLog) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}
