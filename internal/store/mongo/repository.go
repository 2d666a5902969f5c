// Package mongo stores the billing collection in MongoDB.
//
// An upload is written to a staging collection first and then renamed over
// the live collection, so a failed upload never leaves a half-written
// dataset behind.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ginjaninja78/billing-inquiry/internal/store"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// Config holds connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
	BatchSize  int
}

// billDocument is the stored form of a record. Seq preserves upload order.
type billDocument struct {
	Seq                 int `bson:"seq"`
	types.BillingRecord `bson:",inline"`
}

// Repository implements store.Repository on a MongoDB collection.
type Repository struct {
	client    *mongo.Client
	batchSize int

	dropStaging    func(ctx context.Context) error
	createStaging  func(ctx context.Context) error
	insertStaging  func(ctx context.Context, docs []interface{}) error
	promoteStaging func(ctx context.Context) error
	findAll        func(ctx context.Context) ([]billDocument, error)
}

var _ store.Repository = (*Repository)(nil)

// Connect dials MongoDB, verifies the connection and returns a repository.
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	return newRepository(client, db, cfg.Collection, cfg.BatchSize), nil
}

func newRepository(client *mongo.Client, db *mongo.Database, collection string, batchSize int) *Repository {
	if batchSize < 1 {
		batchSize = 100
	}
	live := db.Collection(collection)
	stagingName := collection + "_staging"
	staging := db.Collection(stagingName)

	r := &Repository{client: client, batchSize: batchSize}

	r.dropStaging = func(ctx context.Context) error {
		return staging.Drop(ctx)
	}
	r.createStaging = func(ctx context.Context) error {
		return db.CreateCollection(ctx, stagingName)
	}
	r.insertStaging = func(ctx context.Context, docs []interface{}) error {
		_, err := staging.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
		return err
	}
	r.promoteStaging = func(ctx context.Context) error {
		cmd := bson.D{
			{Key: "renameCollection", Value: db.Name() + "." + stagingName},
			{Key: "to", Value: db.Name() + "." + collection},
			{Key: "dropTarget", Value: true},
		}
		return client.Database("admin").RunCommand(ctx, cmd).Err()
	}
	r.findAll = func(ctx context.Context) ([]billDocument, error) {
		findOpts := options.Find().
			SetSort(bson.D{{Key: "seq", Value: 1}}).
			SetBatchSize(int32(batchSize))
		cursor, err := live.Find(ctx, bson.M{}, findOpts)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var docs []billDocument
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	return r
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// ReplaceAll writes records to the staging collection in batches and then
// renames it over the live collection.
func (r *Repository) ReplaceAll(ctx context.Context, records []types.BillingRecord) error {
	if err := r.dropStaging(ctx); err != nil {
		return fmt.Errorf("dropping staging collection: %w", err)
	}
	// Renaming requires the source collection to exist, even when empty.
	if err := r.createStaging(ctx); err != nil {
		return fmt.Errorf("creating staging collection: %w", err)
	}

	seq := 0
	for _, batch := range store.Batches(records, r.batchSize) {
		docs := make([]interface{}, len(batch))
		for i, rec := range batch {
			docs[i] = billDocument{Seq: seq, BillingRecord: rec}
			seq++
		}
		if err := r.insertStaging(ctx, docs); err != nil {
			return fmt.Errorf("inserting batch at record %d: %w", seq-len(batch), err)
		}
	}

	if err := r.promoteStaging(ctx); err != nil {
		return fmt.Errorf("promoting staging collection: %w", err)
	}
	return nil
}

// LoadAll returns every stored record in upload order.
func (r *Repository) LoadAll(ctx context.Context) ([]types.BillingRecord, error) {
	docs, err := r.findAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding bills: %w", err)
	}

	records := make([]types.BillingRecord, len(docs))
	for i, doc := range docs {
		records[i] = doc.BillingRecord
	}
	return records, nil
}
