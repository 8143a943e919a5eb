package repository

import (
	"context"
	"fmt"

	"github.com/docrev/docrev/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a MongoDB collection. UpdateIf maps to a
// single UpdateOne with $set/$unset/$push, which Mongo applies atomically
// per document — that is the serialization point the revision engine
// depends on.
type MongoStore struct {
	col     *mongo.Collection
	idField string
}

// NewMongoStore wraps col. When idField is not the native "_id" a unique
// index is ensured so primary-key lookups stay cheap.
func NewMongoStore(col *mongo.Collection, idField string) *MongoStore {
	if idField == "" {
		idField = document.DefaultIDField
	}
	if idField != document.DefaultIDField {
		idx := mongo.IndexModel{
			Keys:    bson.D{{Key: idField, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		col.Indexes().CreateOne(context.Background(), idx)
	}
	return &MongoStore{col: col, idField: idField}
}

func (m *MongoStore) FindOne(ctx context.Context, filter document.Document, projection Projection) (document.Document, error) {
	opts := options.FindOne()
	if len(projection) > 0 {
		opts.SetProjection(projectionDoc(projection))
	}
	var d document.Document
	err := m.col.FindOne(ctx, bson.M(filter), opts).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo findOne: %w", err)
	}
	return d, nil
}

func (m *MongoStore) Find(ctx context.Context, filter document.Document, projection Projection, fo FindOptions) ([]document.Document, error) {
	opts := options.Find()
	if len(projection) > 0 {
		opts.SetProjection(projectionDoc(projection))
	}
	if fo.Limit > 0 {
		opts.SetLimit(fo.Limit)
	}
	if fo.Skip > 0 {
		opts.SetSkip(fo.Skip)
	}
	if len(fo.Sort) > 0 {
		sort := bson.D{}
		for k, dir := range fo.Sort {
			sort = append(sort, bson.E{Key: k, Value: dir})
		}
		opts.SetSort(sort)
	}
	if filter == nil {
		filter = document.Document{}
	}
	cur, err := m.col.Find(ctx, bson.M(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)
	out := []document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("mongo decode: %w", err)
		}
		out = append(out, d)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor: %w", err)
	}
	return out, nil
}

func (m *MongoStore) Insert(ctx context.Context, doc document.Document) (document.Document, error) {
	res, err := m.col.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return nil, fmt.Errorf("mongo insert: %w", err)
	}
	if _, present := doc[document.DefaultIDField]; !present && res.InsertedID != nil {
		doc[document.DefaultIDField] = res.InsertedID
	}
	return doc, nil
}

func (m *MongoStore) UpdateIf(ctx context.Context, filter document.Document, u Update) (int64, error) {
	update := bson.M{}
	if len(u.Set) > 0 {
		update["$set"] = bson.M(u.Set)
	}
	if len(u.Unset) > 0 {
		unset := bson.M{}
		for _, path := range u.Unset {
			unset[path] = ""
		}
		update["$unset"] = unset
	}
	if len(u.Push) > 0 {
		update["$push"] = bson.M(u.Push)
	}
	res, err := m.col.UpdateOne(ctx, bson.M(filter), update)
	if err != nil {
		return 0, fmt.Errorf("mongo update: %w", err)
	}
	return res.ModifiedCount, nil
}

func (m *MongoStore) DeleteOne(ctx context.Context, filter document.Document) (int64, error) {
	res, err := m.col.DeleteOne(ctx, bson.M(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo delete: %w", err)
	}
	return res.DeletedCount, nil
}

func projectionDoc(p Projection) bson.M {
	out := bson.M{}
	for k, v := range p {
		out[k] = v
	}
	return out
}
