package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const defaultConnectTimeout = 10 * time.Second

// MongoDialer opens a fresh MongoDB client for every connection scope.
type MongoDialer struct {
	URL            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Dial connects and pings the primary. The returned connection disconnects
// the client on Close.
func (d *MongoDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	clientOptions := options.Client().
		ApplyURI(d.URL).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	// In v2, Connect creates the client without doing I/O; Ping verifies it.
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, errors.Wrap(err, "pinging mongodb")
	}

	return &mongoConn{
		client: client,
		coll:   client.Database(d.Database).Collection(d.Collection),
	}, nil
}

type mongoConn struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (c *mongoConn) FindOne(ctx context.Context, id bson.ObjectID) (bson.M, error) {
	var doc bson.M
	err := c.coll.FindOne(ctx, bson.M{FieldInternalID: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "findOne")
	}
	return doc, nil
}

func (c *mongoConn) InsertOne(ctx context.Context, doc bson.M) (bson.ObjectID, error) {
	if _, ok := doc[FieldInternalID]; ok {
		return bson.NilObjectID, errors.New("document already carries a key")
	}
	id := bson.NewObjectID()
	payload := make(bson.M, len(doc)+1)
	for k, v := range doc {
		payload[k] = v
	}
	payload[FieldInternalID] = id

	res, err := c.coll.InsertOne(ctx, payload)
	if err != nil {
		return bson.NilObjectID, errors.Wrap(err, "insertOne")
	}
	if inserted, ok := res.InsertedID.(bson.ObjectID); ok {
		return inserted, nil
	}
	return id, nil
}

func (c *mongoConn) FindOneAndReplace(ctx context.Context, id bson.ObjectID, doc bson.M) (bson.M, error) {
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)

	var out bson.M
	err := c.coll.FindOneAndReplace(ctx, bson.M{FieldInternalID: id}, doc, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "findOneAndReplace")
	}
	return out, nil
}

func (c *mongoConn) DeleteOne(ctx context.Context, id bson.ObjectID) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, bson.M{FieldInternalID: id})
	if err != nil {
		return 0, errors.Wrap(err, "deleteOne")
	}
	return res.DeletedCount, nil
}

func (c *mongoConn) ListIDs(ctx context.Context) ([]bson.ObjectID, error) {
	opts := options.Find().SetProjection(bson.D{{Key: FieldInternalID, Value: 1}})

	cursor, err := c.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find")
	}
	defer cursor.Close(ctx)

	ids := make([]bson.ObjectID, 0)
	for cursor.Next(ctx) {
		var row bson.M
		if err := cursor.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decoding id")
		}
		id, ok := row[FieldInternalID].(bson.ObjectID)
		if !ok {
			log.Warn().Interface("key", row[FieldInternalID]).Msg("skipping document with non ObjectID key")
			continue
		}
		ids = append(ids, id)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating ids")
	}
	return ids, nil
}

func (c *mongoConn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
