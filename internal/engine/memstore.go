package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrConnClosed is returned by a MemDialer connection used after Close.
var ErrConnClosed = errors.New("connection closed")

// MemDialer is an in-process document collection. It is safe for concurrent
// use and optionally snapshots the collection to disk after every write.
type MemDialer struct {
	mu   sync.RWMutex
	docs map[bson.ObjectID]bson.M

	persister  *Persistence
	collection string
	seq        uint64
	wg         sync.WaitGroup

	open atomic.Int64
}

// NewMemDialer initializes a collection from previously saved documents
// (keyed by public identifier, see Persistence.Load). p may be nil.
func NewMemDialer(collection string, initial map[string]map[string]any, p *Persistence) *MemDialer {
	m := &MemDialer{
		docs:       make(map[bson.ObjectID]bson.M, len(initial)),
		persister:  p,
		collection: collection,
	}
	for uid, doc := range initial {
		id, err := ParseUID(uid)
		if err != nil {
			log.Warn().Str("uid", uid).Msg("skipping snapshot entry with invalid identifier")
			continue
		}
		stored := cloneDoc(doc)
		delete(stored, FieldUID)
		stored[FieldInternalID] = id
		m.docs[id] = stored
	}
	return m
}

// Wait waits for all background persistence tasks to complete.
func (m *MemDialer) Wait() {
	m.wg.Wait()
}

// OpenConns reports the number of connections that have not been closed.
func (m *MemDialer) OpenConns() int64 {
	return m.open.Load()
}

// Dial implements Dialer.
func (m *MemDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.open.Add(1)
	return &memConn{store: m}, nil
}

// snapshot must be called with m.mu held.
func (m *MemDialer) snapshot() (uint64, map[string]map[string]any) {
	m.seq++
	out := make(map[string]map[string]any, len(m.docs))
	for id, doc := range m.docs {
		c := cloneDoc(doc)
		delete(c, FieldInternalID)
		out[id.Hex()] = c
	}
	return m.seq, out
}

// persist must be called with m.mu held; the write itself happens in the background.
func (m *MemDialer) persist() {
	if m.persister == nil {
		return
	}
	seq, data := m.snapshot()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.persister.SaveCollection(m.collection, seq, data); err != nil {
			log.Error().Stack().Err(err).Str("collection", m.collection).Msg("saving snapshot")
		}
	}()
}

type memConn struct {
	store  *MemDialer
	closed atomic.Bool
}

func (c *memConn) check(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return ctx.Err()
}

func (c *memConn) FindOne(ctx context.Context, id bson.ObjectID) (bson.M, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	m := c.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc), nil
}

func (c *memConn) InsertOne(ctx context.Context, doc bson.M) (bson.ObjectID, error) {
	if err := c.check(ctx); err != nil {
		return bson.NilObjectID, err
	}
	if _, ok := doc[FieldInternalID]; ok {
		return bson.NilObjectID, errors.New("document already carries a key")
	}
	id := bson.NewObjectID()
	stored := cloneDoc(doc)
	stored[FieldInternalID] = id

	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = stored
	m.persist()
	return id, nil
}

func (c *memConn) FindOneAndReplace(ctx context.Context, id bson.ObjectID, doc bson.M) (bson.M, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return nil, nil
	}
	stored := cloneDoc(doc)
	stored[FieldInternalID] = id
	m.docs[id] = stored
	m.persist()
	return cloneDoc(stored), nil
}

func (c *memConn) DeleteOne(ctx context.Context, id bson.ObjectID) (int64, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	m := c.store
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return 0, nil
	}
	delete(m.docs, id)
	m.persist()
	return 1, nil
}

func (c *memConn) ListIDs(ctx context.Context) ([]bson.ObjectID, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	m := c.store
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]bson.ObjectID, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	// ObjectIDs start with a timestamp, so this is roughly insertion order.
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids, nil
}

func (c *memConn) Close(context.Context) error {
	if c.closed.CompareAndSwap(false, true) {
		c.store.open.Add(-1)
	}
	return nil
}

// cloneDoc deep copies a document so callers never share maps with the store.
func cloneDoc(doc map[string]any) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if id, ok := v.(bson.ObjectID); ok && k == FieldInternalID {
			out[k] = id
			continue
		}
		out[k] = normalize(v)
	}
	return out
}
