package engine

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Reserved field names. A document at rest carries FieldInternalID only and a
// document handed to a client carries FieldUID only.
const (
	FieldUID        = "uid"
	FieldInternalID = "_id"
)

// Resource is one stored document as seen by callers of the Store. It never
// carries FieldInternalID.
type Resource map[string]any

// Has reports whether the resource carries the given top-level field.
func (r Resource) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// ParseUID decodes a public identifier into the store's native key.
// It never touches the store: anything that is not a 24 character hex
// string is rejected with ErrInvalidIdentifier.
func ParseUID(uid string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(uid)
	if err != nil {
		return bson.NilObjectID, ErrInvalidIdentifier
	}
	return id, nil
}

// toPublic converts a document read from a driver into a Resource, moving
// the native key from FieldInternalID to FieldUID.
func toPublic(doc bson.M) (Resource, error) {
	id, ok := doc[FieldInternalID].(bson.ObjectID)
	if !ok {
		return nil, errors.Errorf("document key has unexpected type %T", doc[FieldInternalID])
	}
	out := make(Resource, len(doc))
	for k, v := range doc {
		if k == FieldInternalID {
			continue
		}
		out[k] = normalize(v)
	}
	out[FieldUID] = id.Hex()
	return out, nil
}

// toInternal builds the write payload for a driver. Both identifier fields
// are stripped; drivers key documents by the ObjectID they are given.
func toInternal(r Resource) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		if k == FieldUID || k == FieldInternalID {
			continue
		}
		doc[k] = v
	}
	return doc
}

// normalize converts BSON specific values into plain JSON friendly Go values.
func normalize(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case bson.Decimal128:
		return val.String()
	case bson.Binary:
		return val.Data
	case bson.D:
		m := make(map[string]any, len(val))
		for _, elem := range val {
			m[elem.Key] = normalize(elem.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = normalize(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = normalize(e)
		}
		return m
	case bson.A:
		arr := make([]any, len(val))
		for i, e := range val {
			arr[i] = normalize(e)
		}
		return arr
	case []any:
		arr := make([]any, len(val))
		for i, e := range val {
			arr[i] = normalize(e)
		}
		return arr
	default:
		return v
	}
}
