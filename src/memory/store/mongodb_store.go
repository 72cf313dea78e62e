package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// MongoStore keeps memories in a MongoDB collection. RunInTx needs a replica
// set or sharded cluster.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	sessCtx    mongo.SessionContext
	nowFn      func() time.Time
}

var (
	_ MemoryStore       = (*MongoStore)(nil)
	_ SchemaInitializer = (*MongoStore)(nil)
	_ OwnerLister       = (*MongoStore)(nil)
)

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		collection = "memories"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		nowFn:      time.Now,
	}, nil
}

// opCtx binds operations inside a transaction to its session.
func (ms *MongoStore) opCtx(ctx context.Context) context.Context {
	if ms.sessCtx != nil {
		return ms.sessCtx
	}
	return ctx
}

func (ms *MongoStore) Insert(ctx context.Context, m *model.Memory) error {
	prepareInsert(m, ms.nowFn().UTC())
	if _, err := ms.collection.InsertOne(ms.opCtx(ctx), toMongoDocument(m)); err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (ms *MongoStore) FindExactMatch(ctx context.Context, ownerID, content string, typ model.MemoryType) (*model.Memory, error) {
	filter := bson.M{"owner_id": ownerID, "memory_type": string(typ), "content": content}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return ms.findOne(ctx, filter, opts)
}

func (ms *MongoStore) Get(ctx context.Context, ownerID, id string) (*model.Memory, error) {
	return ms.findOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
}

func (ms *MongoStore) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*model.Memory, error) {
	var doc mongoMemoryDocument
	err := ms.collection.FindOne(ms.opCtx(ctx), filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find memory: %w", err)
	}
	return doc.toMemory(), nil
}

func (ms *MongoStore) Query(ctx context.Context, q model.Query) ([]*model.Memory, error) {
	opts := options.Find().SetSort(mongoSort(q.Order))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	ctx = ms.opCtx(ctx)
	cursor, err := ms.collection.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*model.Memory
	for cursor.Next(ctx) {
		var doc mongoMemoryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toMemory())
	}
	return out, cursor.Err()
}

func (ms *MongoStore) Update(ctx context.Context, m *model.Memory) error {
	set := bson.M{
		"content":          m.Content,
		"category":         m.Category,
		"tags":             model.NormalizeTags(m.Tags),
		"source_platform":  m.SourcePlatform,
		"embedding":        float64Embedding(m.Embedding),
		"embedding_origin": m.EmbeddingOrigin,
		"relevance_score":  m.RelevanceScore,
		"updated_at":       m.UpdatedAt,
	}
	res, err := ms.collection.UpdateOne(ms.opCtx(ctx), bson.M{"_id": m.ID, "owner_id": m.OwnerID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (ms *MongoStore) Delete(ctx context.Context, ownerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := ms.collection.DeleteMany(ms.opCtx(ctx), bson.M{"owner_id": ownerID, "_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (ms *MongoStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MemoryStore) error) error {
	if ms.sessCtx != nil {
		return fn(ctx, ms)
	}
	session, err := ms.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		tx := &MongoStore{client: ms.client, collection: ms.collection, sessCtx: sessCtx, nowFn: ms.nowFn}
		return nil, fn(sessCtx, tx)
	})
	return err
}

func (ms *MongoStore) Owners(ctx context.Context) ([]string, error) {
	values, err := ms.collection.Distinct(ms.opCtx(ctx), "owner_id", bson.M{})
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			owners = append(owners, s)
		}
	}
	return owners, nil
}

// CreateSchema ensures the collection has the indexes the queries rely on.
func (ms *MongoStore) CreateSchema(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "relevance_score", Value: -1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("owner_rank"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "memory_type", Value: 1}, {Key: "content", Value: 1}},
			Options: options.Index().SetName("owner_exact"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "tags", Value: 1}},
			Options: options.Index().SetName("owner_tags"),
		},
	}
	_, err := ms.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Close releases the underlying MongoDB client.
func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil || ms.sessCtx != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func mongoFilter(q model.Query) bson.M {
	filter := bson.M{"owner_id": q.OwnerID}
	if q.Type != "" {
		filter["memory_type"] = string(q.Type)
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.HasEmbedding {
		filter["embedding.0"] = bson.M{"$exists": true}
	}
	if q.ContentContains != "" {
		filter["content"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.ContentContains), Options: "i"}
	}
	return filter
}

func mongoSort(o model.Order) bson.D {
	switch o {
	case model.OrderUpdated:
		return bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}
	case model.OrderCreated:
		return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "relevance_score", Value: -1}, {Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}
}

type mongoMemoryDocument struct {
	ID              string    `bson:"_id"`
	OwnerID         string    `bson:"owner_id"`
	Content         string    `bson:"content"`
	Type            string    `bson:"memory_type"`
	Category        string    `bson:"category"`
	Tags            []string  `bson:"tags"`
	SourcePlatform  string    `bson:"source_platform"`
	Embedding       []float64 `bson:"embedding,omitempty"`
	EmbeddingOrigin string    `bson:"embedding_origin"`
	RelevanceScore  float64   `bson:"relevance_score"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toMongoDocument(m *model.Memory) mongoMemoryDocument {
	return mongoMemoryDocument{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		Content:         m.Content,
		Type:            string(m.Type),
		Category:        m.Category,
		Tags:            model.NormalizeTags(m.Tags),
		SourcePlatform:  m.SourcePlatform,
		Embedding:       float64Embedding(m.Embedding),
		EmbeddingOrigin: m.EmbeddingOrigin,
		RelevanceScore:  m.RelevanceScore,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (doc mongoMemoryDocument) toMemory() *model.Memory {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return &model.Memory{
		ID:              doc.ID,
		OwnerID:         doc.OwnerID,
		Content:         doc.Content,
		Type:            model.MemoryType(doc.Type),
		Category:        doc.Category,
		Tags:            tags,
		SourcePlatform:  doc.SourcePlatform,
		Embedding:       float32Embedding(doc.Embedding),
		EmbeddingOrigin: doc.EmbeddingOrigin,
		RelevanceScore:  doc.RelevanceScore,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}
}

func float64Embedding(vec []float32) []float64 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float32Embedding(vec []float64) []float32 {
	if len(vec) == 0 {
		return nil
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
