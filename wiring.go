package main

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nischalstha-ns/e-commerce-sub001/common/auth"
	"github.com/nischalstha-ns/e-commerce-sub001/config"
	"github.com/nischalstha-ns/e-commerce-sub001/database"
	"github.com/nischalstha-ns/e-commerce-sub001/events"
	"github.com/nischalstha-ns/e-commerce-sub001/middleware"
	"github.com/nischalstha-ns/e-commerce-sub001/notifier"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// backends holds the connections opened for the selected configuration so
// they can be closed on shutdown.
type backends struct {
	store     repository.CartStore
	notifier  notifier.Notifier
	idem      repository.IdempotencyStore
	firestore *repository.FirestoreStore
	closers   []func() error
}

func (b *backends) onClose(fn func() error) { b.closers = append(b.closers, fn) }

// Close releases everything in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config, awsCfg *sdkaws.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}
	var redisClient *redis.Client
	needRedis := cfg.CartStore == config.StoreRedis || cfg.Notifier() == config.StoreRedis
	if needRedis {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient = client
		b.onClose(client.Close)
		logger.Info("Connected to Redis")
	}

	var pgStore *repository.PostgresStore
	switch cfg.CartStore {
	case config.StoreMemory:
		b.store = repository.NewMemoryStore()
	case config.StoreRedis:
		b.store = repository.NewRedisStore(redisClient, cfg.CartTTL)
	case config.StorePostgres:
		db, err := database.ConnectPostgres(cfg.PostgresDSN(), logger, &repository.CartRow{}, &repository.LineItemRow{})
		if err != nil {
			b.Close()
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			b.onClose(sqlDB.Close)
		}
		pgStore = repository.NewPostgresStore(db)
		b.store = pgStore
	case config.StoreMongo:
		client, mdb, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.onClose(func() error { return database.DisconnectMongo(client) })
		b.store = repository.NewMongoStore(mdb)
		logger.Info("Connected to MongoDB", zap.String("db", cfg.MongoDBName))
	case config.StoreDynamo:
		if awsCfg == nil {
			b.Close()
			return nil, fmt.Errorf("CART_STORE=dynamodb needs AWS configuration")
		}
		client, err := database.NewDynamoClient(ctx, *awsCfg, cfg.DynamoTable, cfg.DynamoCreateTable)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.store = repository.NewDynamoStore(client, cfg.DynamoTable)
	case config.StoreFirestore:
		client, err := database.NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentials)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.onClose(client.Close)
		b.firestore = repository.NewFirestoreStore(client)
		b.store = b.firestore
	default:
		return nil, fmt.Errorf("unknown CART_STORE %q", cfg.CartStore)
	}

	switch cfg.Notifier() {
	case config.StoreRedis:
		b.notifier = notifier.NewRedisNotifier(redisClient, logger)
	case config.StorePostgres:
		pool, err := database.NewPgxPool(ctx, cfg.PostgresDSN())
		if err != nil {
			b.Close()
			return nil, err
		}
		b.onClose(func() error { pool.Close(); return nil })
		pn, err := notifier.NewPostgresNotifier(ctx, pool, pgStore, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.notifier = pn
	case config.StoreFirestore:
		b.notifier = notifier.NewFirestoreNotifier(b.firestore, logger)
	default:
		b.notifier = notifier.NewHub(logger)
	}
	b.onClose(b.notifier.Close)

	if cfg.IdempotencyEnabled {
		if redisClient != nil {
			b.idem = repository.NewRedisIdempotencyStore(redisClient)
		} else {
			b.idem = repository.NewMemoryIdempotencyStore()
		}
	}
	return b, nil
}

func newEventPublisher(cfg config.Config, awsCfg *sdkaws.Config, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaUpdatesTopic, logger), nil
	case config.EventsSNS:
		if awsCfg == nil {
			return nil, fmt.Errorf("EVENTS_BACKEND=sns needs AWS configuration")
		}
		return events.NewSNSPublisher(awspkg.NewSNSClient(*awsCfg, logger), cfg.CartSNSTopicARN), nil
	}
	return events.NopPublisher{}, nil
}

func newAuthenticator(ctx context.Context, cfg config.Config) (middleware.Authenticator, error) {
	switch cfg.AuthMode {
	case middleware.AuthModeJWT:
		return middleware.JWTAuth{Parser: auth.NewTokenParser(cfg.JWTSecret)}, nil
	case middleware.AuthModeFirebase:
		projectID := cfg.FirebaseProjectID
		if projectID == "" {
			projectID = cfg.FirestoreProjectID
		}
		client, err := database.NewFirebaseAuth(ctx, projectID, cfg.GoogleCredentials)
		if err != nil {
			return nil, err
		}
		return middleware.FirebaseAuth{Verifier: client}, nil
	}
	return middleware.GatewayAuth{}, nil
}
