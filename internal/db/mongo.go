package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"press_archive/internal/config"
	"press_archive/internal/models"
)

const opTimeout = 10 * time.Second

// MongoDB mirrors the stage datasets into two collections keyed by article id.
type MongoDB struct {
	client      *mongo.Client
	database    *mongo.Database
	articles    *mongo.Collection
	validations *mongo.Collection
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	d := &MongoDB{
		client:      client,
		database:    database,
		articles:    database.Collection(cfg.Collections.Articles),
		validations: database.Collection(cfg.Collections.Validations),
	}

	if err := d.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indexes: %w", err)
	}

	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) error {
	_, err := d.articles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ticker", Value: 1}}},
		{Keys: bson.D{{Key: "site", Value: 1}}},
	})
	return err
}

// SaveArchiveRows upserts rows by id and returns how many documents changed.
func (d *MongoDB) SaveArchiveRows(ctx context.Context, rows []models.ArchiveRow) (int64, error) {
	return d.upsert(ctx, d.articles, archiveWrites(rows))
}

func (d *MongoDB) SaveValidationRows(ctx context.Context, rows []models.ValidationRow) (int64, error) {
	return d.upsert(ctx, d.validations, validationWrites(rows))
}

func (d *MongoDB) upsert(ctx context.Context, coll *mongo.Collection, writes []mongo.WriteModel) (int64, error) {
	if len(writes) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert into %s: %w", coll.Name(), err)
	}

	return res.UpsertedCount + res.ModifiedCount, nil
}

func archiveWrites(rows []models.ArchiveRow) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(rows))
	for _, r := range rows {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(r).
			SetUpsert(true))
	}
	return writes
}

func validationWrites(rows []models.ValidationRow) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, len(rows))
	for _, r := range rows {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(r).
			SetUpsert(true))
	}
	return writes
}

// TickerCounts returns the number of mirrored articles per ticker.
func (d *MongoDB) TickerCounts(ctx context.Context) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$ticker"},
			{Key: "articles", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := d.articles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Ticker   string `bson:"_id"`
		Articles int    `bson:"articles"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(results))
	for _, r := range results {
		counts[r.Ticker] = r.Articles
	}
	return counts, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}
