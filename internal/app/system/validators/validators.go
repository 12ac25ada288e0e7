// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/crewfund/crew/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the ledger collections (if missing) and attaches
// JSON-Schema validators that back the balance and state rules at the
// database. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("usuarios", usuariosSchema())
	ensure("proyectos", proyectosSchema())
	ensure("transacciones", transaccionesSchema())
	ensure("solicitudesTarjeta", requestSchema())
	ensure("verificaciones", requestSchema())
	ensure("reportes", reportesSchema())
	ensure("comentarios", comentariosSchema())

	// No validators; created up front so change streams can open on them.
	ensure("notificaciones", nil)
	ensure("idempotencia", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// Cents are stored as 64-bit integers; small values may round-trip as int.
var centsType = bson.A{"long", "int"}

func nonNegCents() bson.M { return bson.M{"bsonType": centsType, "minimum": 0} }

func enumOf[T ~string](vals ...T) bson.A {
	out := make(bson.A, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

func usuariosSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "role", "balance", "withdrawable_balance"},
			"properties": bson.M{
				"email":                bson.M{"bsonType": "string", "minLength": 3},
				"display_name":         bson.M{"bsonType": "string"},
				"role":                 bson.M{"enum": enumOf(models.Roles...)},
				"balance":              nonNegCents(),
				"withdrawable_balance": nonNegCents(),
				"is_id_verified":       bson.M{"bsonType": bson.A{"bool", "string"}},
			},
		},
	}
}

func proyectosSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"creator_id", "title", "goal_total", "raised", "project_wallet_balance", "state"},
			"properties": bson.M{
				"creator_id":             bson.M{"bsonType": "string", "minLength": 1},
				"title":                  bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"goal_total":             bson.M{"bsonType": centsType, "minimum": 1},
				"raised":                 nonNegCents(),
				"project_wallet_balance": nonNegCents(),
				"state": bson.M{"enum": enumOf(
					models.ProjectPublished, models.ProjectGoalReached, models.ProjectClosed,
					models.ProjectHidden, models.ProjectDeleted,
				)},
			},
		},
	}
}

func transaccionesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"amount", "kind", "direction", "source_id", "destination_id", "timestamp"},
			"properties": bson.M{
				"amount":    bson.M{"bsonType": centsType, "minimum": 1},
				"kind":      bson.M{"enum": enumOf(models.KindDonation, models.KindWithdrawal, models.KindReclaim, models.KindRecharge)},
				"direction": bson.M{"enum": enumOf(models.Debit, models.Credit)},
				"timestamp": bson.M{"bsonType": "date"},
			},
		},
	}
}

// requestSchema covers card and identity requests, which share a status.
func requestSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "status"},
			"properties": bson.M{
				"user_id": bson.M{"bsonType": "string", "minLength": 1},
				"status":  bson.M{"enum": enumOf(models.RequestPending, models.RequestApproved, models.RequestRejected)},
			},
		},
	}
}

func reportesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"target_type", "target_id", "reason", "status"},
			"properties": bson.M{
				"target_type": bson.M{"enum": enumOf(models.TargetProject, models.TargetComment)},
				"target_id":   bson.M{"bsonType": "string", "minLength": 1},
				"reason":      bson.M{"bsonType": "string", "minLength": 1},
				"status":      bson.M{"enum": enumOf(models.ReportPending, models.ReportResolved, models.ReportRejected)},
			},
		},
	}
}

func comentariosSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"project_id", "user_id", "rating"},
			"properties": bson.M{
				"project_id": bson.M{"bsonType": "string", "minLength": 1},
				"user_id":    bson.M{"bsonType": "string", "minLength": 1},
				"rating":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1, "maximum": 5},
			},
		},
	}
}
