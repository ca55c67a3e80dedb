package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/database"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"go.uber.org/zap"
)

// CartImporter writes a cart keeping its timestamps.
type CartImporter interface {
	ImportCart(ctx context.Context, cart *models.Cart) error
}

// CartScanner walks every stored cart.
type CartScanner interface {
	Scan(ctx context.Context, batchSize int32, fn func(*models.Cart) error) error
}

type stats struct {
	migrated int
	failed   int
}

// migrate copies every cart from src to dst. A cart that fails to import is
// logged and skipped; dry runs only count.
func migrate(ctx context.Context, src CartScanner, dst CartImporter, batch int32, dryRun bool, logger *zap.Logger) (stats, error) {
	var st stats
	err := src.Scan(ctx, batch, func(cart *models.Cart) error {
		if cart.CreatedAt.IsZero() {
			cart.CreatedAt = time.Now().UTC()
		}
		if cart.UpdatedAt.IsZero() {
			cart.UpdatedAt = cart.CreatedAt
		}
		if !dryRun {
			if err := dst.ImportCart(ctx, cart); err != nil {
				logger.Warn("failed to write cart", zap.String("owner_id", cart.OwnerID), zap.Error(err))
				st.failed++
				return nil
			}
		}
		st.migrated++
		if st.migrated%100 == 0 {
			logger.Info("migration progress", zap.Int("migrated", st.migrated))
		}
		return nil
	})
	return st, err
}

func main() {
	var mongoURI, dbName, table string
	var batch int
	var dryRun, createTable bool
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_DB_URL"), "MongoDB URI")
	flag.StringVar(&dbName, "db", os.Getenv("MONGO_DB_NAME"), "MongoDB database name")
	flag.StringVar(&table, "table", os.Getenv("DDB_TABLE_CARTS"), "DynamoDB table name")
	flag.IntVar(&batch, "batch", 500, "Mongo cursor batch size")
	flag.BoolVar(&dryRun, "dry-run", false, "count carts without writing")
	flag.BoolVar(&createTable, "create-table", false, "create the DynamoDB table if missing")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if mongoURI == "" || dbName == "" {
		logger.Fatal("MONGO_DB_URL and MONGO_DB_NAME must be set or provided via flags")
	}
	if table == "" {
		table = "Carts"
	}

	ctx := context.Background()
	mclient, mdb, err := database.ConnectMongo(ctx, mongoURI, dbName)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer database.DisconnectMongo(mclient) //nolint:errcheck

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		logger.Fatal("aws config", zap.Error(err))
	}
	ddbClient, err := database.NewDynamoClient(ctx, awsCfg, table, createTable)
	if err != nil {
		logger.Fatal("dynamodb", zap.Error(err))
	}

	st, err := migrate(ctx, repository.NewMongoStore(mdb), repository.NewDynamoStore(ddbClient, table), int32(batch), dryRun, logger)
	if err != nil {
		logger.Fatal("migration aborted", zap.Int("migrated", st.migrated), zap.Error(err))
	}
	logger.Info("migration complete",
		zap.Int("migrated", st.migrated),
		zap.Int("failed", st.failed),
		zap.Bool("dry_run", dryRun))
}
