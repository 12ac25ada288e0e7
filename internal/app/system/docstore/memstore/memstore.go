// Package memstore is an in-process docstore.Store.
//
// It backs the test suite and the "memory" store backend. Documents are kept
// as encoded BSON so that callers observe the same encoding rules as with
// MongoDB, and every write bumps a store-wide sequence used as the
// document version.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const feedBuffer = 256

type entry struct {
	doc     bson.Raw
	version int64
}

type subscriber struct {
	ch chan docstore.Change
}

// Store is a concurrency-safe in-memory document store.
type Store struct {
	mu    sync.RWMutex
	colls map[string]map[string]*entry
	seq   int64

	subMu sync.Mutex
	subs  map[string]map[*subscriber]struct{}

	failMu     sync.RWMutex
	failAll    error
	failWrites map[string]error
}

var _ docstore.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		colls:      make(map[string]map[string]*entry),
		subs:       make(map[string]map[*subscriber]struct{}),
		failWrites: make(map[string]error),
	}
}

// FailAll makes every subsequent operation return err wrapped in
// docstore.ErrUnavailable. Pass nil to clear.
func (s *Store) FailAll(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failAll = err
}

// FailWrites makes non-transactional writes to coll fail. Pass nil to clear.
func (s *Store) FailWrites(coll string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failWrites, coll)
		return
	}
	s.failWrites[coll] = err
}

func (s *Store) checkFail(coll string, write bool) error {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	if s.failAll != nil {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, s.failAll)
	}
	if write {
		if err := s.failWrites[coll]; err != nil {
			return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
		}
	}
	return nil
}

func (s *Store) lookup(coll, id string) *entry {
	if c := s.colls[coll]; c != nil {
		return c[id]
	}
	return nil
}

func (s *Store) put(coll, id string, doc bson.Raw) int64 {
	c := s.colls[coll]
	if c == nil {
		c = make(map[string]*entry)
		s.colls[coll] = c
	}
	s.seq++
	c[id] = &entry{doc: doc, version: s.seq}
	return s.seq
}

func (s *Store) Get(ctx context.Context, coll, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkFail(coll, false); err != nil {
		return err
	}
	s.mu.RLock()
	e := s.lookup(coll, id)
	s.mu.RUnlock()
	if e == nil {
		return docstore.ErrNotFound
	}
	return bson.Unmarshal(e.doc, out)
}

func (s *Store) Insert(ctx context.Context, coll, id string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.checkFail(coll, true); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := marshal(id, doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.lookup(coll, id) != nil {
		s.mu.Unlock()
		return "", docstore.ErrExists
	}
	s.put(coll, id, raw)
	s.mu.Unlock()

	s.publish(docstore.Change{Collection: coll, ID: id, Kind: docstore.ChangeInsert, Doc: raw})
	return id, nil
}

func (s *Store) Merge(ctx context.Context, coll, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkFail(coll, true); err != nil {
		return err
	}

	s.mu.Lock()
	e := s.lookup(coll, id)
	if e == nil {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	var d bson.D
	if err := bson.Unmarshal(e.doc, &d); err != nil {
		s.mu.Unlock()
		return err
	}
	for k, v := range fields {
		if k == "_id" || k == docstore.VersionField {
			continue
		}
		replaced := false
		for i := range d {
			if d[i].Key == k {
				d[i].Value = v
				replaced = true
				break
			}
		}
		if !replaced {
			d = append(d, bson.E{Key: k, Value: v})
		}
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.put(coll, id, raw)
	s.mu.Unlock()

	s.publish(docstore.Change{Collection: coll, ID: id, Kind: docstore.ChangeUpdate, Doc: raw})
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkFail(coll, true); err != nil {
		return err
	}
	s.mu.Lock()
	if s.lookup(coll, id) == nil {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	delete(s.colls[coll], id)
	s.seq++
	s.mu.Unlock()

	s.publish(docstore.Change{Collection: coll, ID: id, Kind: docstore.ChangeDelete})
	return nil
}

func (s *Store) Query(ctx context.Context, coll string, q docstore.Query, out any) error {
	docs, err := s.selectDocs(ctx, coll, q)
	if err != nil {
		return err
	}
	raws := make([]bson.Raw, len(docs))
	for i, d := range docs {
		raws[i] = d.raw
	}
	return docstore.DecodeAll(raws, out)
}

func (s *Store) Count(ctx context.Context, coll string, q docstore.Query) (int64, error) {
	q.Limit = 0
	docs, err := s.selectDocs(ctx, coll, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

type decoded struct {
	raw bson.Raw
	m   bson.M
}

func (s *Store) selectDocs(ctx context.Context, coll string, q docstore.Query) ([]decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.checkFail(coll, false); err != nil {
		return nil, err
	}

	s.mu.RLock()
	snapshot := make([]bson.Raw, 0, len(s.colls[coll]))
	for _, e := range s.colls[coll] {
		snapshot = append(snapshot, e.doc)
	}
	s.mu.RUnlock()

	var hits []decoded
	for _, raw := range snapshot {
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if matches(m, q.Filters) {
			hits = append(hits, decoded{raw: raw, m: m})
		}
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "_id"
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if q.Desc {
			return less(hits[j].m, hits[i].m, orderBy)
		}
		return less(hits[i].m, hits[j].m, orderBy)
	})

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.checkFail("", false); err != nil {
		return err
	}
	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) Subscribe(ctx context.Context, coll string) (<-chan docstore.Change, error) {
	sub := &subscriber{ch: make(chan docstore.Change, feedBuffer)}

	s.subMu.Lock()
	if s.subs[coll] == nil {
		s.subs[coll] = make(map[*subscriber]struct{})
	}
	s.subs[coll][sub] = struct{}{}
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs[coll], sub)
		close(sub.ch)
		s.subMu.Unlock()
	}()
	return sub.ch, nil
}

// publish delivers c to every subscriber of its collection. A subscriber
// whose buffer is full misses the change.
func (s *Store) publish(c docstore.Change) {
	c.At = time.Now().UTC()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subs[c.Collection] {
		select {
		case sub.ch <- c:
		default:
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.checkFail("", false)
}

func (s *Store) Close(context.Context) error { return nil }

func marshal(id string, doc any) (bson.Raw, error) {
	d, err := docstore.Encode(id, doc)
	if err != nil {
		return nil, err
	}
	return bson.Marshal(d)
}
