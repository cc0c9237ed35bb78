package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shahintaesheikh/agentflow/src/memory/model"
)

// MongoVectorIndex is the Atlas Search index queried by MongoStore. It must
// index "embedding" as a vector and "generation" as a filter field.
const MongoVectorIndex = "vector_index"

const mongoCloseTimeout = 5 * time.Second

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoDocument struct {
	Generation string    `bson:"generation"`
	DocID      string    `bson:"doc_id"`
	Content    string    `bson:"content"`
	Metadata   bson.M    `bson:"metadata,omitempty"`
	Embedding  []float64 `bson:"embedding"`
	Score      float64   `bson:"score,omitempty"`
}

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoStore{client: client, collection: client.Database(database).Collection(collection)}, nil
}

func (ms *MongoStore) StoreDocuments(ctx context.Context, docs []model.Document) error {
	if err := validateDocuments(docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		filter := bson.D{{Key: "generation", Value: doc.Generation}, {Key: "doc_id", Value: doc.ID}}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(toMongoDocument(doc)).
			SetUpsert(true))
	}
	_, err := ms.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

func (ms *MongoStore) SearchDocuments(ctx context.Context, generation string, query []float32, limit int) ([]model.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: MongoVectorIndex},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: float64Embedding(query)},
			{Key: "numCandidates", Value: int64(limit * 10)},
			{Key: "limit", Value: int64(limit)},
			{Key: "filter", Value: bson.D{{Key: "generation", Value: generation}}},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := ms.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var matches []model.Match
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		matches = append(matches, model.Match{Document: doc.toDocument(), Score: doc.Score})
	}
	return matches, cursor.Err()
}

func (ms *MongoStore) DropGeneration(ctx context.Context, generation string) error {
	_, err := ms.collection.DeleteMany(ctx, bson.D{{Key: "generation", Value: generation}})
	return err
}

func (ms *MongoStore) Count(ctx context.Context, generation string) (int, error) {
	filter := bson.D{}
	if generation != "" {
		filter = bson.D{{Key: "generation", Value: generation}}
	}
	n, err := ms.collection.CountDocuments(ctx, filter)
	return int(n), err
}

func (ms *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func toMongoDocument(doc model.Document) mongoDocument {
	return mongoDocument{
		Generation: doc.Generation,
		DocID:      doc.ID,
		Content:    doc.Content,
		Metadata:   bson.M(model.CloneMetadata(doc.Metadata)),
		Embedding:  float64Embedding(doc.Embedding),
	}
}

func (d mongoDocument) toDocument() model.Document {
	out := model.Document{
		ID:         d.DocID,
		Generation: d.Generation,
		Content:    d.Content,
		Embedding:  float32Embedding(d.Embedding),
	}
	if len(d.Metadata) > 0 {
		out.Metadata = map[string]any(d.Metadata)
	}
	return out
}

func float64Embedding(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float32Embedding(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
