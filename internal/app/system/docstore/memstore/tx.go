package memstore

import (
	"context"
	"errors"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/bson"
)

var errWriteWithoutRead = errors.New("memstore: transaction writes a document it did not read")

type docKey struct {
	coll string
	id   string
}

type pendingWrite struct {
	key    docKey
	doc    bson.Raw
	create bool
	delete bool
}

type tx struct {
	s      *Store
	reads  map[docKey]int64 // version observed; 0 means absent
	writes []pendingWrite
	index  map[docKey]int
}

func newTx(s *Store) *tx {
	return &tx{
		s:     s,
		reads: make(map[docKey]int64),
		index: make(map[docKey]int),
	}
}

func (t *tx) Get(ctx context.Context, coll, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := docKey{coll, id}

	if i, ok := t.index[k]; ok {
		w := t.writes[i]
		if w.delete {
			return docstore.ErrNotFound
		}
		return bson.Unmarshal(w.doc, out)
	}

	t.s.mu.RLock()
	e := t.s.lookup(coll, id)
	t.s.mu.RUnlock()

	if e == nil {
		if _, seen := t.reads[k]; !seen {
			t.reads[k] = 0
		}
		return docstore.ErrNotFound
	}
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = e.version
	}
	return bson.Unmarshal(e.doc, out)
}

func (t *tx) Set(coll, id string, doc any) error {
	k := docKey{coll, id}
	v, seen := t.reads[k]
	if !seen || (v == 0 && !t.createdHere(k)) {
		return errWriteWithoutRead
	}
	raw, err := marshal(id, doc)
	if err != nil {
		return err
	}
	t.buffer(pendingWrite{key: k, doc: raw, create: t.createdHere(k)})
	return nil
}

func (t *tx) Create(coll, id string, doc any) error {
	k := docKey{coll, id}
	if v, seen := t.reads[k]; seen && v != 0 {
		return docstore.ErrExists
	}
	if i, ok := t.index[k]; ok && !t.writes[i].delete {
		return docstore.ErrExists
	}
	raw, err := marshal(id, doc)
	if err != nil {
		return err
	}
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = 0
	}
	t.buffer(pendingWrite{key: k, doc: raw, create: true})
	return nil
}

func (t *tx) Delete(coll, id string) error {
	k := docKey{coll, id}
	if v, seen := t.reads[k]; !seen || v == 0 {
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

// commit validates the read set and applies all writes under one lock.
func (t *tx) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	s := t.s
	s.mu.Lock()
	for k, want := range t.reads {
		var have int64
		if e := s.lookup(k.coll, k.id); e != nil {
			have = e.version
		}
		if have != want {
			s.mu.Unlock()
			return docstore.ErrConflict
		}
	}

	changes := make([]docstore.Change, 0, len(t.writes))
	for _, w := range t.writes {
		c := docstore.Change{Collection: w.key.coll, ID: w.key.id}
		switch {
		case w.delete:
			delete(s.colls[w.key.coll], w.key.id)
			s.seq++
			c.Kind = docstore.ChangeDelete
		case w.create:
			s.put(w.key.coll, w.key.id, w.doc)
			c.Kind, c.Doc = docstore.ChangeInsert, w.doc
		default:
			s.put(w.key.coll, w.key.id, w.doc)
			c.Kind, c.Doc = docstore.ChangeUpdate, w.doc
		}
		changes = append(changes, c)
	}
	s.mu.Unlock()

	for _, c := range changes {
		s.publish(c)
	}
	return nil
}
