// Package engine is the storage side of Celerix Objects. It owns the
// translation between public identifiers and the document store's native
// keys, and the lifecycle of every store connection.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrConnection is returned when the store cannot be reached or rejects the credentials.
	ErrConnection = errors.New("store unavailable")
	// ErrInvalidIdentifier is returned when a public identifier cannot be decoded.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotFound is returned when a well formed identifier matches no document.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when a caller supplies server owned fields.
	ErrValidation = errors.New("validation error")
	// ErrQuery is returned when the store fails a read.
	ErrQuery = errors.New("query failed")
	// ErrInsert is returned when the store rejects an insert.
	ErrInsert = errors.New("insert failed")
	// ErrReplace is returned when the store rejects a replace.
	ErrReplace = errors.New("replace failed")
	// ErrDelete is returned when the store rejects a delete.
	ErrDelete = errors.New("delete failed")
)

// OpError describes a failed Store operation. errors.Is matches both the
// Kind sentinel and the underlying driver error.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Dialer opens connections to a single document collection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one open connection. All primitives are keyed by the native
// ObjectID. FindOne and FindOneAndReplace return a nil document and a nil
// error when nothing matches.
type Conn interface {
	FindOne(ctx context.Context, id bson.ObjectID) (bson.M, error)
	InsertOne(ctx context.Context, doc bson.M) (bson.ObjectID, error)
	FindOneAndReplace(ctx context.Context, id bson.ObjectID, doc bson.M) (bson.M, error)
	DeleteOne(ctx context.Context, id bson.ObjectID) (int64, error)
	ListIDs(ctx context.Context) ([]bson.ObjectID, error)
	Close(ctx context.Context) error
}

// Store is the only component that knows about native keys. Each method
// acquires its own connection and releases it before returning.
type Store struct {
	dialer Dialer
}

// NewStore wraps a Dialer.
func NewStore(d Dialer) *Store {
	return &Store{dialer: d}
}

// Acquire opens a connection. The caller must Close it.
func (s *Store) Acquire(ctx context.Context) (Conn, error) {
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return nil, opError("acquire", ErrConnection, err)
	}
	return conn, nil
}

// withConn runs fn inside a connection scope. The connection is closed on
// every exit path, panics included.
func (s *Store) withConn(ctx context.Context, op string, fn func(Conn) error) error {
	conn, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn().Err(cerr).Str("op", op).Msg("closing store connection")
		}
	}()
	return fn(conn)
}

// Ping checks that a connection can be acquired and released.
func (s *Store) Ping(ctx context.Context) error {
	return s.withConn(ctx, "ping", func(Conn) error { return nil })
}

// FindOne returns the resource identified by uid.
func (s *Store) FindOne(ctx context.Context, uid string) (Resource, error) {
	id, err := ParseUID(uid)
	if err != nil {
		return nil, opError("find", ErrInvalidIdentifier, nil)
	}

	var res Resource
	err = s.withConn(ctx, "find", func(c Conn) error {
		doc, err := c.FindOne(ctx, id)
		if err != nil {
			return opError("find", ErrQuery, err)
		}
		if doc == nil {
			return opError("find", ErrNotFound, nil)
		}
		res, err = toPublic(doc)
		if err != nil {
			return opError("find", ErrQuery, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InsertOne stores a new resource and returns its public identifier.
// Callers that need the stored representation must call FindOne.
func (s *Store) InsertOne(ctx context.Context, r Resource) (string, error) {
	if r.Has(FieldUID) || r.Has(FieldInternalID) {
		return "", opError("insert", ErrValidation, nil)
	}

	var uid string
	err := s.withConn(ctx, "insert", func(c Conn) error {
		id, err := c.InsertOne(ctx, toInternal(r))
		if err != nil {
			return opError("insert", ErrInsert, err)
		}
		uid = id.Hex()
		return nil
	})
	if err != nil {
		return "", err
	}
	return uid, nil
}

// ListIDs returns the public identifier of every stored resource in store
// order. An empty collection yields an empty slice.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	var uids []string
	err := s.withConn(ctx, "list", func(c Conn) error {
		ids, err := c.ListIDs(ctx)
		if err != nil {
			return opError("list", ErrQuery, err)
		}
		uids = make([]string, 0, len(ids))
		for _, id := range ids {
			uids = append(uids, id.Hex())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uids, nil
}

// PutOne replaces every field of an existing resource with the fields of r,
// which must carry the FieldUID of the target. A missing target is reported
// as ErrNotFound; PutOne never creates documents.
func (s *Store) PutOne(ctx context.Context, r Resource) (Resource, error) {
	uid, ok := r[FieldUID].(string)
	if !ok || r.Has(FieldInternalID) {
		return nil, opError("replace", ErrValidation, nil)
	}
	id, err := ParseUID(uid)
	if err != nil {
		return nil, opError("replace", ErrInvalidIdentifier, nil)
	}

	if _, err := s.FindOne(ctx, uid); err != nil {
		return nil, err
	}

	var res Resource
	err = s.withConn(ctx, "replace", func(c Conn) error {
		doc, err := c.FindOneAndReplace(ctx, id, toInternal(r))
		if err != nil {
			return opError("replace", ErrReplace, err)
		}
		if doc == nil {
			// removed between the existence check and the replace
			return opError("replace", ErrNotFound, nil)
		}
		res, err = toPublic(doc)
		if err != nil {
			return opError("replace", ErrQuery, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteOne makes sure the resource identified by uid is gone. Deleting an
// absent resource is not an error.
func (s *Store) DeleteOne(ctx context.Context, uid string) error {
	id, err := ParseUID(uid)
	if err != nil {
		return opError("delete", ErrInvalidIdentifier, nil)
	}

	return s.withConn(ctx, "delete", func(c Conn) error {
		n, err := c.DeleteOne(ctx, id)
		if err != nil {
			return opError("delete", ErrDelete, err)
		}
		log.Debug().Str("uid", uid).Int64("deleted", n).Msg("delete")
		return nil
	})
}
