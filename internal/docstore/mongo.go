package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoWatchRetryDelay = time.Second

// MongoStore maps collections one to one onto MongoDB collections. Push
// delivery uses a database-wide change stream, which needs a replica set.
type MongoStore struct {
	logger zerolog.Logger
	db     *mongo.Database

	hub  *hub
	feed *feed
}

type mongoChangeEvent struct {
	NS struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
}

func NewMongoStore(logger zerolog.Logger, db *mongo.Database) *MongoStore {
	s := &MongoStore{
		logger: logger,
		db:     db,
	}
	s.hub = newHub(func() { s.feed.reconcile() })
	s.feed = &feed{
		active: func() bool { return s.hub.size() > 0 },
		listen: s.watch,
	}
	return s
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var m bson.M
	err := s.db.Collection(collection).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Str("id", id).
			Msg("failed to find document")
		return nil, err
	}
	return decodeBSONDocument(m)
}

func (s *MongoStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	doc, err := encodeBSONDocument(primitive.NewObjectID().Hex(), fields)
	if err != nil {
		return "", err
	}

	res, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Msg("failed to insert document")
		return "", err
	}
	id, _ := res.InsertedID.(string)
	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("inserted document")
	return id, nil
}

func (s *MongoStore) Put(ctx context.Context, collection, id string, fields Fields) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrMalformedDocument)
	}
	doc, err := encodeBSONDocument(id, fields)
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": id},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Str("id", id).
			Msg("failed to upsert document")
		return err
	}
	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("upserted document")
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Str("id", id).
			Msg("failed to delete document")
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("deleted document")
	return nil
}

func (s *MongoStore) Find(ctx context.Context, q Query) ([]Document, error) {
	err := q.validate()
	if err != nil {
		return nil, err
	}
	filters, err := q.normalizedFilters()
	if err != nil {
		return nil, err
	}

	sort := bson.D{}
	if q.Sort != nil {
		dir := 1
		if q.Sort.Direction == Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: q.Sort.Field, Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	cursor, err := s.db.Collection(q.Collection).Find(
		ctx,
		bson.M(filters),
		options.Find().SetSort(sort),
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", q.Collection).
			Msg("failed to find documents")
		return nil, err
	}

	var results []bson.M
	err = cursor.All(ctx, &results)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", q.Collection).
			Msg("failed to decode documents")
		return nil, err
	}

	docs := make([]Document, 0, len(results))
	for _, m := range results {
		doc, err := decodeBSONDocument(m)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("collection", q.Collection).
				Msg("skipping undecodable document")
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Msg("failed to count documents")
		return 0, err
	}
	return n, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error) {
	err := q.validate()
	if err != nil {
		return nil, err
	}

	sub := newSubscription(ctx, s.logger, q, s.Find, fn, s.hub.remove)
	s.hub.add(sub)
	sub.start()
	return sub, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.hub.cancelAll()
	s.feed.stop()
	return s.db.Client().Disconnect(ctx)
}

func (s *MongoStore) watch(ctx context.Context) {
	for {
		err := s.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().
			Err(err).
			Dur("retry_in", mongoWatchRetryDelay).
			Msg("document change stream stopped")

		select {
		case <-ctx.Done():
			return
		case <-time.After(mongoWatchRetryDelay):
		}
	}
}

func (s *MongoStore) watchOnce(ctx context.Context) error {
	stream, err := s.db.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return fmt.Errorf("failed to open change stream: %w", err)
	}
	defer func() { _ = stream.Close(context.Background()) }()

	s.logger.Debug().
		Str("database", s.db.Name()).
		Msg("watching document changes")
	s.hub.publishAll()

	for stream.Next(ctx) {
		var ev mongoChangeEvent
		err = stream.Decode(&ev)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Msg("failed to decode change event")
			s.hub.publishAll()
			continue
		}
		s.hub.publish(ev.NS.Coll)
	}
	return stream.Err()
}

func encodeBSONDocument(id string, fields Fields) (bson.M, error) {
	normalized, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	doc := bson.M(normalized)
	doc["_id"] = id
	return doc, nil
}

func decodeBSONDocument(m bson.M) (*Document, error) {
	id, ok := m["_id"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: _id is %T", ErrMalformedDocument, m["_id"])
	}

	fields := make(Fields, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedDocument, k, err)
		}
		fields[k] = nv
	}
	return &Document{ID: id, Fields: fields}, nil
}
