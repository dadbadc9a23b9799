package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/moodlocation/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	defaultPingTimeout     = 10 * time.Second
	defaultMaxPoolSize     = 50
	defaultMinPoolSize     = 2
	defaultMaxConnIdleTime = 2 * time.Minute
)

// Database bundles the shared client and the application database handle.
// It is created once per process and passed to the repositories.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.Config) (*Database, error) {
	name, err := DatabaseName(cfg.Database)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Database.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.Database.URI).
		SetMaxPoolSize(defaultMaxPoolSize).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxConnIdleTime(defaultMaxConnIdleTime).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Database{
		client: client,
		db:     client.Database(name),
	}, nil
}

// DatabaseName resolves the database to use: MONGO_DATABASE when set,
// otherwise the path component of the connection URI.
func DatabaseName(cfg config.DatabaseConfig) (string, error) {
	if name := strings.TrimSpace(cfg.Name); name != "" {
		return name, nil
	}
	cs, err := connstring.ParseAndValidate(cfg.URI)
	if err != nil {
		return "", err
	}
	if cs.Database == "" {
		return config.DefaultDatabaseName, nil
	}
	return cs.Database, nil
}

// Collection returns a handle to the named collection.
func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Name returns the database name in use.
func (d *Database) Name() string {
	return d.db.Name()
}

// Host returns the first host of a connection URI, for startup logging.
func Host(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || len(cs.Hosts) == 0 {
		return ""
	}
	return cs.Hosts[0]
}

// Ping checks that the primary is reachable.
func (d *Database) Ping(ctx context.Context) error {
	if d == nil || d.client == nil {
		return errors.New("database not initialized")
	}
	return d.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Disconnect(ctx)
}
