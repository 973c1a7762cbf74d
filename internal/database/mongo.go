package database

import (
	"context"
	"fmt"
	"time"

	pkgLogger "github.com/sjperalta/cashflow-api/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectMongo opens a MongoDB client and returns the named database
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	monitor := pkgLogger.NewMongoMonitor(200 * time.Millisecond)

	opts := options.Client().
		ApplyURI(uri).
		SetAppName("cashflow-api").
		SetMaxPoolSize(50).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetMonitor(monitor.CommandMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client.Database(database), nil
}
