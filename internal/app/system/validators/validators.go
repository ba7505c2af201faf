// internal/app/system/validators/validators.go
// Package validators creates the MongoDB collections the datastore uses and
// attaches JSON-Schema validators so rows written outside the API still
// carry their scope.
package validators

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/store/datastore"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates missing collections and sets validators. On servers that
// don't support collMod validators (some DocumentDB versions) the validator
// step is logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database, tables datastore.Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	existing := map[string]bool{}
	if names, err := db.ListCollectionNames(ctx, bson.M{}); err == nil {
		for _, n := range names {
			existing[n] = true
		}
	}

	var problems []string
	for _, name := range collectionNames(tables) {
		log := logger.With(zap.String("collection", name))
		if !existing[name] {
			if err := db.CreateCollection(ctx, name); err != nil && !isNamespaceExistsErr(err) {
				problems = append(problems, name+": "+err.Error())
				continue
			}
			log.Info("created collection")
		}
		schema := SchemaFor(name, tables)
		if schema == nil {
			continue
		}
		if err := setValidator(ctx, db, name, schema); err != nil {
			if isUnsupported(err) {
				log.Info("validator skipped (unsupported)")
				continue
			}
			problems = append(problems, name+": "+err.Error())
			continue
		}
		log.Debug("validator ensured")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func collectionNames(tables datastore.Registry) []string {
	names := append([]string{"users"}, tables.Names()...)
	sort.Strings(names)
	return names
}

// SchemaFor returns the $jsonSchema validator for a collection, or nil.
func SchemaFor(name string, tables datastore.Registry) bson.M {
	switch name {
	case "users":
		return usersSchema()
	case "schools":
		return schoolsSchema()
	}
	t, ok := tables[name]
	if !ok {
		return nil
	}
	switch t.Scope {
	case datastore.SchoolScoped:
		return scopedSchema(datastore.SchoolColumn)
	case datastore.YearScoped:
		return scopedSchema(datastore.SchoolColumn, datastore.YearColumn)
	}
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	return db.RunCommand(ctx, cmd).Decode(&out)
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 48 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

// isUnsupported matches "no such command" (59) and "not implemented" (115).
func isUnsupported(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || ce.Code == 115) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such command") || strings.Contains(s, "not implemented")
}

/* ---------------------------- schemas ---------------------------- */

var nonEmpty = bson.M{"bsonType": "string", "minLength": 1}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "role", "status", "password_hash"},
			"properties": bson.M{
				"email":         nonEmpty,
				"email_ci":      nonEmpty,
				"password_hash": nonEmpty,
				"role":          bson.M{"bsonType": "string", "enum": bson.A{models.RoleAdmin, models.RoleStaff}},
				"status":        bson.M{"bsonType": "string", "enum": bson.A{models.UserActive, models.UserDisabled}},
				"school_codes":  bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
			},
		},
	}
}

func schoolsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"code", "name"},
			"properties": bson.M{
				"code":      nonEmpty,
				"name":      nonEmpty,
				"is_active": bson.M{"bsonType": "bool"},
			},
		},
	}
}

// scopedSchema requires each scope column to be a non-empty string.
func scopedSchema(cols ...string) bson.M {
	required := bson.A{}
	props := bson.M{}
	for _, c := range cols {
		required = append(required, c)
		props[c] = nonEmpty
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}
