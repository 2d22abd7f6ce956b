// Package mongo implements the document store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aksharjobs/matchscore/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// Database is one MongoDB database.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Database = (*Database)(nil)

// Connect opens a client for uri and verifies the connection.
func Connect(ctx context.Context, uri, database string) (*Database, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Database{client: client, db: client.Database(database)}, nil
}

func (d *Database) Collection(name string) store.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Collection adapts a mongo collection to store.Collection.
type Collection struct {
	coll *mongo.Collection
}

var _ store.Collection = (*Collection)(nil)

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, toBSONFilter(filter)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.coll.Name(), err)
	}
	return normalizeDocument(raw), nil
}

func (c *Collection) Find(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	cursor, err := c.coll.Find(ctx, toBSONFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("read %s cursor: %w", c.coll.Name(), err)
	}

	docs := make([]store.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, normalizeDocument(raw))
	}
	return docs, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (string, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc))
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("insert into %s: %w", c.coll.Name(), store.ErrDuplicateKey)
	}
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return idString(res.InsertedID), nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) (store.UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, toBSONFilter(filter), bson.M{"$set": bson.M(set)})
	if mongo.IsDuplicateKeyError(err) {
		return store.UpdateResult{}, fmt.Errorf("update %s: %w", c.coll.Name(), store.ErrDuplicateKey)
	}
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	return store.UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (c *Collection) EnsureUniqueIndex(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return errors.New("unique index needs at least one field")
	}

	keys := bson.D{}
	for _, field := range fields {
		if err := store.ValidateField(field); err != nil {
			return err
		}
		keys = append(keys, bson.E{Key: field, Value: 1})
	}

	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create unique index on %s: %w", c.coll.Name(), err)
	}
	return nil
}

// referenceFields hold ids that other writers may have stored as ObjectIDs.
var referenceFields = []string{store.IDField, "userId", "jobId"}

// toBSONFilter converts an equality filter. String ids that look like ObjectIDs
// match both representations.
func toBSONFilter(filter store.Filter) bson.M {
	result := make(bson.M, len(filter))
	for k, v := range filter {
		result[k] = v
	}

	for _, field := range referenceFields {
		id, ok := filter[field].(string)
		if !ok {
			continue
		}
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			result[field] = bson.M{"$in": bson.A{id, oid}}
		}
	}
	return result
}

// normalizeDocument converts driver specific values to plain Go values.
func normalizeDocument(raw bson.M) store.Document {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch typed := v.(type) {
	case primitive.ObjectID:
		return typed.Hex()
	case primitive.DateTime:
		return typed.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(typed.T), 0).UTC()
	case primitive.Decimal128:
		if f, err := decimalToFloat(typed); err == nil {
			return f
		}
		return typed.String()
	case bson.M:
		return normalizeDocument(typed)
	case map[string]any:
		return normalizeDocument(bson.M(typed))
	case bson.D:
		m := make(bson.M, len(typed))
		for _, e := range typed {
			m[e.Key] = e.Value
		}
		return normalizeDocument(m)
	case bson.A:
		items := make([]any, 0, len(typed))
		for _, item := range typed {
			items = append(items, normalizeValue(item))
		}
		return items
	case []any:
		return normalizeValue(bson.A(typed))
	default:
		return v
	}
}

func decimalToFloat(d primitive.Decimal128) (float64, error) {
	var f float64
	_, err := fmt.Sscan(d.String(), &f)
	return f, err
}

func idString(id any) string {
	switch typed := id.(type) {
	case primitive.ObjectID:
		return typed.Hex()
	case string:
		return typed
	default:
		return fmt.Sprint(id)
	}
}
