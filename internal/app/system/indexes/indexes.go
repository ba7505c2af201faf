// internal/app/system/indexes/indexes.go
// Package indexes reconciles the MongoDB indexes the datastore relies on.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection's set is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, tables datastore.Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var problems []string
	for _, coll := range Plan(tables) {
		if err := ensureIndexSet(ctx, db.Collection(coll.Name), coll.Models, logger); err != nil {
			problems = append(problems, coll.Name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Collection is the desired index set for one collection.
type Collection struct {
	Name   string
	Models []mongo.IndexModel
}

// Plan lists the desired indexes: fixed sets for users, schools,
// academic_years and audit_events, and a scope index on every year-scoped
// table in tables.
func Plan(tables datastore.Registry) []Collection {
	plan := []Collection{
		{Name: "users", Models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email_ci", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_users_emailci"),
			},
			{
				Keys:    bson.D{{Key: "role", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("idx_users_role_status"),
			},
		}},
		{Name: "schools", Models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_schools_code"),
			},
			// directory load: active schools by name
			{
				Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetName("idx_schools_active_name"),
			},
		}},
		{Name: "academic_years", Models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "start_date", Value: 1}},
				Options: options.Index().SetName("idx_academic_years_school_start"),
			},
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_academic_years_school_name"),
			},
		}},
		{Name: "audit_events", Models: []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "occurred_at", Value: -1}},
				Options: options.Index().SetName("idx_audit_events_occurred"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}},
				Options: options.Index().SetName("idx_audit_events_user_occurred"),
			},
		}},
	}

	var scopedNames []string
	for name, t := range tables {
		if t.Scope == datastore.YearScoped {
			scopedNames = append(scopedNames, name)
		}
	}
	sort.Strings(scopedNames)
	for _, name := range scopedNames {
		models := []mongo.IndexModel{{
			Keys: bson.D{
				{Key: datastore.SchoolColumn, Value: 1},
				{Key: datastore.YearColumn, Value: 1},
			},
			Options: options.Index().SetName("idx_" + name + "_scope"),
		}}
		if name == "students" {
			models = append(models, mongo.IndexModel{
				Keys: bson.D{
					{Key: datastore.SchoolColumn, Value: 1},
					{Key: datastore.YearColumn, Value: 1},
					{Key: "student_number", Value: 1},
				},
				Options: options.Index().SetUnique(true).SetName("uniq_students_scope_number"),
			})
		}
		plan = append(plan, Collection{Name: name, Models: models})
	}
	return plan
}

/* -------------------------------------------------------------------------- */
/* Reconcile one collection                                                   */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(p *bool) bool { return p != nil && *p }

func isDuplicateKeyErr(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "E11000")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates missing indexes and replaces ones whose name or
// uniqueness differ from the desired model.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, logger *zap.Logger) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// a collection that does not exist yet has no indexes to list
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		name := ""
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := logger.With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", isUnique(unique)))

		if ex, ok := existing[sig]; ok {
			if isUnique(ex.Unique) == isUnique(unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index")
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop %s failed: %v", name, ex.Name, err))
				continue
			}
			log.Info("dropped index to realign", zap.String("old_name", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && isUnique(unique) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index on (%s), duplicates present", name, sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
