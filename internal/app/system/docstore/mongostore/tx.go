package mongostore

import (
	"context"
	"errors"

	"github.com/crewfund/crew/internal/app/system/docstore"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errWriteWithoutRead = errors.New("mongostore: transaction writes a document it did not read")

type docKey struct {
	coll string
	id   string
}

type readState struct {
	exists  bool
	version int64 // 0 for documents written before versioning
}

type pendingWrite struct {
	key    docKey
	doc    any
	create bool
	delete bool
}

type tx struct {
	s      *Store
	reads  map[docKey]readState
	writes []pendingWrite
	index  map[docKey]int
}

func newTx(s *Store) *tx {
	return &tx{
		s:     s,
		reads: make(map[docKey]readState),
		index: make(map[docKey]int),
	}
}

func (t *tx) Get(ctx context.Context, coll, id string, out any) error {
	k := docKey{coll, id}
	if i, ok := t.index[k]; ok {
		w := t.writes[i]
		if w.delete {
			return docstore.ErrNotFound
		}
		d, err := docstore.Encode(id, w.doc)
		if err != nil {
			return err
		}
		raw, err := bson.Marshal(d)
		if err != nil {
			return err
		}
		return bson.Unmarshal(raw, out)
	}

	var raw bson.Raw
	err := t.s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, docstore.ErrNotFound) {
			if _, seen := t.reads[k]; !seen {
				t.reads[k] = readState{}
			}
		}
		return err
	}
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = readState{exists: true, version: versionOf(raw)}
	}
	return bson.Unmarshal(raw, out)
}

func versionOf(raw bson.Raw) int64 {
	v, err := raw.LookupErr(docstore.VersionField)
	if err != nil {
		return 0
	}
	switch v.Type {
	case bsontype.Int64:
		return v.Int64()
	case bsontype.Int32:
		return int64(v.Int32())
	case bsontype.Double:
		return int64(v.Double())
	}
	return 0
}

func (t *tx) Set(coll, id string, doc any) error {
	k := docKey{coll, id}
	rs, seen := t.reads[k]
	if !seen || (!rs.exists && !t.createdHere(k)) {
		return errWriteWithoutRead
	}
	t.buffer(pendingWrite{key: k, doc: doc, create: t.createdHere(k)})
	return nil
}

func (t *tx) Create(coll, id string, doc any) error {
	k := docKey{coll, id}
	if rs, seen := t.reads[k]; seen && rs.exists {
		return docstore.ErrExists
	}
	if i, ok := t.index[k]; ok && !t.writes[i].delete {
		return docstore.ErrExists
	}
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = readState{}
	}
	t.buffer(pendingWrite{key: k, doc: doc, create: true})
	return nil
}

func (t *tx) Delete(coll, id string) error {
	k := docKey{coll, id}
	if rs, seen := t.reads[k]; !seen || !rs.exists {
		return errWriteWithoutRead
	}
	t.buffer(pendingWrite{key: k, delete: true})
	return nil
}

func (t *tx) createdHere(k docKey) bool {
	i, ok := t.index[k]
	return ok && t.writes[i].create
}

func (t *tx) buffer(w pendingWrite) {
	if i, ok := t.index[w.key]; ok {
		t.writes[i] = w
		return
	}
	t.index[w.key] = len(t.writes)
	t.writes = append(t.writes, w)
}

// casFilter matches the document only if it still has the version we read.
func casFilter(id string, rs readState) bson.M {
	if rs.version == 0 {
		return bson.M{"_id": id, docstore.VersionField: bson.M{"$exists": false}}
	}
	return bson.M{"_id": id, docstore.VersionField: rs.version}
}

// commit validates the read set and applies the writes. readCtx must not
// carry the transaction's session, so validation sees committed state
// instead of the session snapshot.
func (t *tx) commit(ctx, readCtx context.Context) error {
	if err := t.validateReads(readCtx); err != nil {
		return err
	}
	return t.flush(ctx)
}

// validateReads fails with ErrConflict if a document the transaction read
// but does not write has changed, appeared or disappeared since the read.
// Written documents are checked by the CAS filters in flush.
func (t *tx) validateReads(ctx context.Context) error {
	for k, rs := range t.reads {
		if _, written := t.index[k]; written {
			continue
		}
		filter := bson.M{"_id": k.id}
		if rs.exists {
			filter = casFilter(k.id, rs)
		}
		n, err := t.s.db.Collection(k.coll).CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return mapErr(err)
		}
		if (n == 1) != rs.exists {
			return docstore.ErrConflict
		}
	}
	return nil
}

// flush applies buffered writes with per-document compare-and-swap. Inside
// a session transaction the writes commit together; otherwise a conflict
// part way through leaves earlier writes applied.
func (t *tx) flush(ctx context.Context) error {
	for _, w := range t.writes {
		c := t.s.db.Collection(w.key.coll)
		rs := t.reads[w.key]

		switch {
		case w.delete:
			res, err := c.DeleteOne(ctx, casFilter(w.key.id, rs))
			if err != nil {
				return mapErr(err)
			}
			if res.DeletedCount == 0 {
				return docstore.ErrConflict
			}

		case w.create:
			d, err := versioned(w.key.id, w.doc, 1)
			if err != nil {
				return err
			}
			if _, err := c.InsertOne(ctx, d); err != nil {
				if wafflemongo.IsDup(err) {
					return docstore.ErrConflict
				}
				return mapErr(err)
			}

		default:
			d, err := versioned(w.key.id, w.doc, rs.version+1)
			if err != nil {
				return err
			}
			res, err := c.ReplaceOne(ctx, casFilter(w.key.id, rs), d)
			if err != nil {
				return mapErr(err)
			}
			if res.MatchedCount == 0 {
				return docstore.ErrConflict
			}
		}
	}
	return nil
}
