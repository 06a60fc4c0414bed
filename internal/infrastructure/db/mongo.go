package db

import (
	"context"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// ConnectMongo connects with OpenTelemetry command monitoring and verifies the
// server is reachable.
func ConnectMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("MongoDB connected",
		zap.Strings("hosts", clientOptions.Hosts),
		zap.String("database", dbName),
	)
	return &Mongo{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}
