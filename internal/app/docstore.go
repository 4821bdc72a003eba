package app

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/adanyl0v/tasks-plus/internal/config"
	"github.com/adanyl0v/tasks-plus/internal/docstore"
)

var globalDocStore docstore.Store

// MustOpenDocStore opens the configured document backend. The postgres
// driver reuses the pool opened by MustConnectPostgres.
func MustOpenDocStore() {
	cfg := config.Global()
	logger := componentLogger("docstore")

	switch cfg.DocStore.Driver {
	case config.DocStoreMemory:
		globalDocStore = docstore.NewMemoryStore(logger)
	case config.DocStorePostgres:
		globalDocStore = docstore.NewPostgresStore(logger, globalPostgresPool)
	case config.DocStoreMongo:
		globalDocStore = docstore.NewMongoStore(logger, mustConnectMongo(cfg.Mongo))
	default:
		err := fmt.Errorf("unknown docstore driver: %s", cfg.DocStore.Driver)
		globalLogger.Error().
			Err(err).
			Msg("failed to open docstore")
		panic(err)
	}

	globalLogger.Info().
		Str("driver", cfg.DocStore.Driver).
		Msg("opened docstore")
}

func mustConnectMongo(cfg config.MongoConfig) *mongo.Database {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to connect to mongo")
		panic(err)
	}

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to ping mongo")
		panic(err)
	}
	globalLogger.Info().
		Str("database", cfg.Database).
		Msg("connected to mongo")
	return client.Database(cfg.Database)
}

func CloseDocStore() {
	ctx, cancel := context.WithTimeout(context.Background(), config.Global().HTTP.ShutdownTimeout)
	defer cancel()

	err := globalDocStore.Close(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to close docstore")
		return
	}
	globalLogger.Info().Msg("closed docstore")
}
