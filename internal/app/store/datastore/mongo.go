// internal/app/store/datastore/mongo.go
package datastore

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo stores each table as a collection of the same name. The row "id"
// is the document _id.
type Mongo struct {
	db *mongo.Database
}

// NewMongo returns a Store over db.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) Find(ctx context.Context, table string, c Criteria) ([]Row, error) {
	opts := options.Find()
	if len(c.Columns) > 0 {
		proj := bson.M{}
		for _, col := range c.Columns {
			proj[toField(col)] = 1
		}
		opts.SetProjection(proj)
	}
	if len(c.Order) > 0 {
		sort := bson.D{}
		for _, o := range c.Order {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: toField(o.Column), Value: dir})
		}
		opts.SetSort(sort)
	}
	if c.Limit > 0 {
		opts.SetLimit(int64(c.Limit))
	}
	return m.find(ctx, table, toFilter(c.Filter), opts)
}

func (m *Mongo) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = toDoc(r)
	}
	if _, err := m.db.Collection(table).InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rows, nil
}

// Update resolves the matching ids first so the returned rows are the ones
// that were changed even when the patch touches a filtered column.
func (m *Mongo) Update(ctx context.Context, table string, filter map[string]any, patch Row) ([]Row, error) {
	ids, err := m.matchingIDs(ctx, table, filter)
	if err != nil || len(ids) == 0 {
		return []Row{}, err
	}
	byID := bson.M{"_id": bson.M{"$in": ids}}
	set := bson.M{}
	for k, v := range patch {
		set[toField(k)] = v
	}
	if _, err := m.db.Collection(table).UpdateMany(ctx, byID, bson.M{"$set": set}); err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m.find(ctx, table, byID, options.Find())
}

func (m *Mongo) Delete(ctx context.Context, table string, filter map[string]any) ([]Row, error) {
	f := toFilter(filter)
	rows, err := m.find(ctx, table, f, options.Find())
	if err != nil || len(rows) == 0 {
		return []Row{}, err
	}
	ids := make([]any, len(rows))
	for i, r := range rows {
		ids[i] = r["id"]
	}
	if _, err := m.db.Collection(table).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return rows, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, readpref.Primary())
}

func (m *Mongo) matchingIDs(ctx context.Context, table string, filter map[string]any) ([]any, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	rows, err := m.find(ctx, table, toFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(rows))
	for i, r := range rows {
		ids[i] = r["id"]
	}
	return ids, nil
}

func (m *Mongo) find(ctx context.Context, table string, filter bson.M, opts *options.FindOptions) ([]Row, error) {
	cur, err := m.db.Collection(table).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	rows := []Row{}
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rows = append(rows, fromDoc(doc))
	}
	return rows, cur.Err()
}

func toField(col string) string {
	if col == "id" {
		return "_id"
	}
	return col
}

func toFilter(filter map[string]any) bson.M {
	f := bson.M{}
	for k, v := range filter {
		f[toField(k)] = v
	}
	return f
}

func toDoc(r Row) bson.M {
	d := bson.M{}
	for k, v := range r {
		d[toField(k)] = v
	}
	return d
}

func fromDoc(doc bson.M) Row {
	r := make(Row, len(doc))
	for k, v := range doc {
		if k == "_id" {
			k = "id"
		}
		r[k] = plain(v)
	}
	return r
}

// plain converts driver types into values encoding/json understands the way
// API clients expect.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = plain(e)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}
