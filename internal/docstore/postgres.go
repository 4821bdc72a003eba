package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresChannel is the LISTEN/NOTIFY channel the documents table trigger
// publishes collection names on.
const PostgresChannel = "documents_changed"

const postgresListenRetryDelay = time.Second

// PostgresStore keeps documents as jsonb rows. One pooled connection sits in
// LISTEN while at least one subscription is open and is handed back to the
// pool when the last one is cancelled.
type PostgresStore struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool

	hub  *hub
	feed *feed
}

func NewPostgresStore(logger zerolog.Logger, pgPool *pgxpool.Pool) *PostgresStore {
	s := &PostgresStore{
		logger: logger,
		pgPool: pgPool,
	}
	s.hub = newHub(func() { s.feed.reconcile() })
	s.feed = &feed{
		active: func() bool { return s.hub.size() > 0 },
		listen: s.listen,
	}
	return s
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	const selectDocumentQuery = `
SELECT data
FROM documents
WHERE collection = $1 AND id = $2
`
	var raw []byte
	err := s.pgPool.QueryRow(
		ctx,
		selectDocumentQuery,
		collection,
		id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Str("id", id).
			Msg("failed to select document")
		return nil, err
	}

	fields, err := decodeJSONFields(raw)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	raw, err := encodeJSONFields(fields)
	if err != nil {
		return "", err
	}

	const insertDocumentQuery = `
INSERT INTO documents (collection, data)
VALUES ($1, $2::jsonb)
RETURNING id
`
	var id string
	err = s.pgPool.QueryRow(
		ctx,
		insertDocumentQuery,
		collection,
		raw,
	).Scan(&id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Msg("failed to insert document")
		return "", err
	}
	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("inserted document")
	return id, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, fields Fields) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrMalformedDocument)
	}
	raw, err := encodeJSONFields(fields)
	if err != nil {
		return err
	}

	const upsertDocumentQuery = `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data
`
	_, err = s.pgPool.Exec(
		ctx,
		upsertDocumentQuery,
		collection,
		id,
		raw,
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

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	const deleteDocumentQuery = `
DELETE FROM documents
WHERE collection = $1 AND id = $2
`
	tag, err := s.pgPool.Exec(
		ctx,
		deleteDocumentQuery,
		collection,
		id,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Str("id", id).
			Msg("failed to delete document")
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Debug().
		Str("collection", collection).
		Str("id", id).
		Msg("deleted document")
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, q Query) ([]Document, error) {
	query, args, err := buildFindQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pgPool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", q.Collection).
			Msg("failed to select documents")
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		err = rows.Scan(&id, &raw)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan document")
			return nil, err
		}

		fields, err := decodeJSONFields(raw)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("collection", q.Collection).
				Str("id", id).
				Msg("skipping undecodable document")
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return docs, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int64, error) {
	const countDocumentsQuery = `
SELECT count(*)
FROM documents
WHERE collection = $1
`
	var n int64
	err := s.pgPool.QueryRow(ctx, countDocumentsQuery, collection).Scan(&n)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("collection", collection).
			Msg("failed to count documents")
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error) {
	_, _, err := buildFindQuery(q)
	if err != nil {
		return nil, err
	}

	sub := newSubscription(ctx, s.logger, q, s.Find, fn, s.hub.remove)
	s.hub.add(sub)
	sub.start()
	return sub, nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.hub.cancelAll()
	s.feed.stop()
	return nil
}

func (s *PostgresStore) listen(ctx context.Context) {
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().
			Err(err).
			Dur("retry_in", postgresListenRetryDelay).
			Msg("document change listener stopped")

		select {
		case <-ctx.Done():
			return
		case <-time.After(postgresListenRetryDelay):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pgPool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			unlistenCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+PostgresChannel)
			cancel()
		}
		conn.Release()
	}()

	_, err = conn.Exec(ctx, "LISTEN "+PostgresChannel)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Debug().
		Str("channel", PostgresChannel).
		Msg("listening for document changes")

	// Anything written before LISTEN took effect would otherwise go unseen.
	s.hub.publishAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		s.hub.publish(n.Payload)
	}
}

func buildFindQuery(q Query) (string, []any, error) {
	err := q.validate()
	if err != nil {
		return "", nil, err
	}
	filters, err := q.normalizedFilters()
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		args = append(args, raw)
		sb.WriteString(" AND data @> $" + strconv.Itoa(len(args)) + "::jsonb")
	}

	sb.WriteString(" ORDER BY ")
	if q.Sort != nil {
		args = append(args, q.Sort.Field)
		sb.WriteString("data -> $" + strconv.Itoa(len(args)) + "::text")
		if q.Sort.Direction == Descending {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("seq ASC")

	return sb.String(), args, nil
}

func encodeJSONFields(fields Fields) ([]byte, error) {
	normalized, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return raw, nil
}

func decodeJSONFields(raw []byte) (Fields, error) {
	var fields Fields
	err := json.Unmarshal(raw, &fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedDocument)
	}
	return fields, nil
}
