// Package mongostore implements docstore.Store on MongoDB.
//
// Every document carries a "_v" version. Transactional writes are guarded by
// a compare-and-swap on that field and, when the deployment supports it, run
// inside a multi-document session transaction. Standalone servers fall back
// to per-document compare-and-swap.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/crewfund/crew/internal/app/system/txn"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	txUnknown int32 = iota
	txSupported
	txUnsupported
)

// Store is a docstore.Store over one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
	txMode atomic.Int32
}

var _ docstore.Store = (*Store)(nil)

// New wraps an already connected client.
func New(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, db: db, log: log}
}

// Open connects to uri, verifies the connection and returns a Store for dbName.
func Open(ctx context.Context, uri, dbName string, maxPool uint64, log *zap.Logger) (*Store, error) {
	opts := options.Client().ApplyURI(uri)
	if maxPool > 0 {
		opts.SetMaxPoolSize(maxPool)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return New(client, client.Database(dbName), log), nil
}

// Database exposes the underlying database for index management.
func (s *Store) Database() *mongo.Database { return s.db }

// Client exposes the underlying client.
func (s *Store) Client() *mongo.Client { return s.client }

func (s *Store) Get(ctx context.Context, coll, id string, out any) error {
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	return mapErr(err)
}

func (s *Store) Insert(ctx context.Context, coll, id string, doc any) (string, error) {
	if id == "" {
		id = primitive.NewObjectID().Hex()
	}
	d, err := versioned(id, doc, 1)
	if err != nil {
		return "", err
	}
	if _, err := s.db.Collection(coll).InsertOne(ctx, d); err != nil {
		if wafflemongo.IsDup(err) {
			return "", docstore.ErrExists
		}
		return "", mapErr(err)
	}
	return id, nil
}

func (s *Store) Merge(ctx context.Context, coll, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		if k == "_id" || k == docstore.VersionField {
			continue
		}
		set[k] = v
	}
	update := bson.M{"$inc": bson.M{docstore.VersionField: 1}}
	if len(set) > 0 {
		update["$set"] = set
	}
	res, err := s.db.Collection(coll).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Query(ctx context.Context, coll string, q docstore.Query, out any) error {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	filter, err := buildFilter(q.Filters)
	if err != nil {
		return err
	}
	cur, err := s.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return mapErr(err)
	}
	defer cur.Close(ctx)
	return mapErr(cur.All(ctx, out))
}

func (s *Store) Count(ctx context.Context, coll string, q docstore.Query) (int64, error) {
	filter, err := buildFilter(q.Filters)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(coll).CountDocuments(ctx, filter)
	return n, mapErr(err)
}

func buildFilter(filters []docstore.Filter) (bson.D, error) {
	if len(filters) == 0 {
		return bson.D{}, nil
	}
	clauses := make([]bson.D, 0, len(filters))
	for _, f := range filters {
		var cond any
		switch f.Op {
		case docstore.Eq:
			cond = f.Value
		case docstore.Ne:
			cond = bson.M{"$ne": f.Value}
		case docstore.Lt:
			cond = bson.M{"$lt": f.Value}
		case docstore.Lte:
			cond = bson.M{"$lte": f.Value}
		case docstore.Gt:
			cond = bson.M{"$gt": f.Value}
		case docstore.Gte:
			cond = bson.M{"$gte": f.Value}
		case docstore.In:
			cond = bson.M{"$in": f.Value}
		default:
			return nil, fmt.Errorf("mongostore: unsupported operator %q", f.Op)
		}
		clauses = append(clauses, bson.D{{Key: f.Field, Value: cond}})
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return bson.D{{Key: "$and", Value: clauses}}, nil
}

// RunTransaction makes one attempt at fn. The first time the server rejects
// sessions the store switches permanently to compare-and-swap only.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	if s.txMode.Load() != txUnsupported {
		err := s.runInSession(ctx, fn)
		if err == nil {
			s.txMode.CompareAndSwap(txUnknown, txSupported)
			return nil
		}
		if s.txMode.Load() == txSupported || !txn.IsNotSupported(err) {
			return err
		}
		s.txMode.Store(txUnsupported)
		s.log.Warn("mongo transactions not supported; using per-document compare-and-swap",
			zap.Error(err))
	}
	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit(ctx, ctx)
}

func (s *Store) runInSession(ctx context.Context, fn docstore.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(context.Background())

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(); err != nil {
			return err
		}
		t := newTx(s)
		if err := fn(sc, t); err != nil {
			_ = sess.AbortTransaction(context.Background())
			return err
		}
		if err := t.commit(sc, ctx); err != nil {
			_ = sess.AbortTransaction(context.Background())
			return err
		}
		if err := sess.CommitTransaction(sc); err != nil {
			_ = sess.AbortTransaction(context.Background())
			return mapErr(err)
		}
		return nil
	})
}

func (s *Store) Subscribe(ctx context.Context, coll string) (<-chan docstore.Change, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := s.db.Collection(coll).Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, mapErr(err)
	}

	out := make(chan docstore.Change, 64)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			var ev struct {
				OperationType string `bson:"operationType"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
				FullDocument bson.Raw            `bson:"fullDocument"`
				ClusterTime  primitive.Timestamp `bson:"clusterTime"`
			}
			if err := cs.Decode(&ev); err != nil {
				s.log.Warn("change stream decode failed", zap.String("collection", coll), zap.Error(err))
				continue
			}
			c := docstore.Change{
				Collection: coll,
				ID:         ev.DocumentKey.ID,
				Doc:        ev.FullDocument,
				At:         time.Unix(int64(ev.ClusterTime.T), 0).UTC(),
			}
			switch ev.OperationType {
			case "insert":
				c.Kind = docstore.ChangeInsert
			case "update", "replace":
				c.Kind = docstore.ChangeUpdate
			case "delete":
				c.Kind = docstore.ChangeDelete
				c.Doc = nil
			default:
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("change stream ended", zap.String("collection", coll), zap.Error(err))
		}
	}()
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx, readpref.Primary()))
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func versioned(id string, doc any, version int64) (bson.D, error) {
	d, err := docstore.Encode(id, doc)
	if err != nil {
		return nil, err
	}
	return append(d, bson.E{Key: docstore.VersionField, Value: version}), nil
}

// mapErr translates driver errors into docstore sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	if errors.Is(err, docstore.ErrConflict) || errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorCode(112) || se.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
		}
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return err
}
