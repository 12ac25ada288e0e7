// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// IdempotencyTTL is how long the server keeps idempotency records.
const IdempotencyTTL = 7 * 24 * time.Hour

/*
EnsureAll is called at startup on the Mongo backend. Each collection's set is
idempotent. Errors are aggregated so every problem is visible at once.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	sets := []struct {
		coll   string
		models []mongo.IndexModel
	}{
		{"usuarios", usuarios()},
		{"proyectos", proyectos()},
		{"solicitudesTarjeta", solicitudesTarjeta()},
		{"verificaciones", verificaciones()},
		{"transacciones", transacciones()},
		{"notificaciones", notificaciones()},
		{"reportes", reportes()},
		{"comentarios", comentarios()},
		{"credenciales", credenciales()},
		{"idempotencia", idempotencia()},
		{"audit_events", auditEvents()},
	}

	var problems []string
	for _, s := range sets {
		if err := ensureIndexSet(ctx, db.Collection(s.coll), s.models); err != nil {
			problems = append(problems, s.coll+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name               string `bson:"name"`
	Key                bson.D `bson:"key"`
	Unique             *bool  `bson:"unique,omitempty"`
	ExpireAfterSeconds *int32 `bson:"expireAfterSeconds,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolOf(p *bool) bool { return p != nil && *p }

func deref(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB return IndexOptionsConflict when an index with the same keys
// already exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

type desired struct {
	name   string
	sig    string
	unique bool
	ttl    int32
}

func describe(m mongo.IndexModel) desired {
	d := desired{sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = boolOf(m.Options.Unique)
		d.ttl = deref(m.Options.ExpireAfterSeconds)
	}
	return d
}

func (d desired) matches(ex existingIndex) bool {
	return d.unique == boolOf(ex.Unique) && d.ttl == deref(ex.ExpireAfterSeconds)
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	fail := func(d desired, err error) {
		zap.L().Warn("index ensure failed",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Error(err))
		if isDuplicateKeyErr(err) && d.unique {
			errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), d.name))
			return
		}
		errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
	}

	for _, m := range models {
		d := describe(m)
		start := time.Now()

		ex, found := listIndexes(ctx, coll)[d.sig]
		if found && d.matches(ex) && (d.name == "" || ex.Name == d.name) {
			zap.L().Debug("reusing existing index",
				zap.String("collection", coll.Name()),
				zap.String("name", ex.Name),
				zap.String("keys", d.sig))
			continue
		}

		// Same keys with a different name or options: drop and recreate.
		if found {
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				fail(d, fmt.Errorf("drop %s: %w", ex.Name, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil && isOptionsConflictErr(err) {
			if ex, ok := listIndexes(ctx, coll)[d.sig]; ok {
				if _, dropErr := coll.Indexes().DropOne(ctx, ex.Name); dropErr == nil {
					created, err = coll.Indexes().CreateOne(ctx, m)
				}
			}
		}
		if err != nil {
			fail(d, err)
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique),
			zap.Bool("recreated", found),
			zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func idx(name string, keys ...string) mongo.IndexModel {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if strings.HasPrefix(k, "-") {
			dir, k = -1, k[1:]
		}
		d = append(d, bson.E{Key: k, Value: dir})
	}
	return mongo.IndexModel{Keys: d, Options: options.Index().SetName(name)}
}

func usuarios() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_usuarios_emailci", "email_ci"),
		idx("idx_usuarios_role_emailci", "role", "email_ci"),
	}
}

func proyectos() []mongo.IndexModel {
	return []mongo.IndexModel{
		// weekly cap count and the creator dashboard
		idx("idx_proyectos_creator_created", "creator_id", "-created_at"),
		// discover: state In + keyword membership, newest first
		idx("idx_proyectos_state_keywords_created", "state", "search_keywords", "-created_at"),
	}
}

func solicitudesTarjeta() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_solicitudes_user_status", "user_id", "status"),
		idx("idx_solicitudes_status_created", "status", "-created_at"),
	}
}

func verificaciones() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_verificaciones_status_created", "status", "-created_at"),
		idx("idx_verificaciones_user", "user_id"),
	}
}

func transacciones() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_transacciones_source_ts", "source_id", "-timestamp"),
		idx("idx_transacciones_dest_ts", "destination_id", "-timestamp"),
		idx("idx_transacciones_dest_kind_dir_ts", "destination_id", "kind", "direction", "timestamp"),
	}
}

func notificaciones() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_notificaciones_target_read_ts", "target_user_id", "read", "-timestamp"),
		idx("idx_notificaciones_audience_ts", "audience", "-timestamp"),
	}
}

func reportes() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_reportes_status_ts", "status", "-timestamp"),
		idx("idx_reportes_target", "target_type", "target_id"),
	}
}

func comentarios() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_comentarios_project_created", "project_id", "-created_at"),
	}
}

func credenciales() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_credenciales_user", "user_id"),
	}
}

func idempotencia() []mongo.IndexModel {
	ttl := idx("ttl_idempotencia_created", "created_at")
	ttl.Options.SetExpireAfterSeconds(int32(IdempotencyTTL / time.Second))
	return []mongo.IndexModel{ttl}
}

func auditEvents() []mongo.IndexModel {
	return []mongo.IndexModel{
		idx("idx_audit_ts", "-timestamp"),
		idx("idx_audit_user_ts", "user_id", "-timestamp"),
		idx("idx_audit_actor_ts", "actor_id", "-timestamp"),
		idx("idx_audit_category_type_ts", "category", "event_type", "-timestamp"),
	}
}
