package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/commoncore/internal/gamestate"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB save repository.
type MongoConfig struct {
	URI        string `yaml:"uri"`        // e.g. mongodb://localhost:27017
	Database   string `yaml:"database"`   // e.g. commoncore
	Collection string `yaml:"collection"` // e.g. saves
}

// MongoRepo implements SaveRepo on MongoDB. One document per slot; the encoded
// save is kept as binary so the checksum covers exactly what was written.
type MongoRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type mongoSlot struct {
	SlotInfo `bson:",inline"`
	Data     []byte `bson:"data"`
}

// NewMongoRepo establishes connection and returns repository.
func NewMongoRepo(ctx context.Context, cfg MongoConfig) (*MongoRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "commoncore"
	}
	if cfg.Collection == "" {
		cfg.Collection = "saves"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	repo := &MongoRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (m *MongoRepo) ensureIndexes(ctx context.Context) error {
	slotIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "slot", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("slot_unique"),
	}
	_, err := m.collection.Indexes().CreateOne(ctx, slotIdx)
	return err
}

// Save implements SaveRepo.
func (m *MongoRepo) Save(ctx context.Context, slot string, store *gamestate.Store) (*SlotInfo, error) {
	data, info, err := encodeStore(slot, store)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	doc := mongoSlot{SlotInfo: *info, Data: data}
	_, err = m.collection.ReplaceOne(ctx, bson.M{"slot": slot}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("не удалось сохранить слот %s: %w", slot, err)
	}
	return info, nil
}

// Load implements SaveRepo.
func (m *MongoRepo) Load(ctx context.Context, slot string) (*gamestate.Store, bool, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	var doc mongoSlot
	err := m.collection.FindOne(ctx, bson.M{"slot": slot}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("не удалось прочитать слот %s: %w", slot, err)
	}

	f, err := Decode(doc.Data)
	if err != nil {
		return nil, false, fmt.Errorf("слот %s: %w", slot, err)
	}
	return f.Store, true, nil
}

// Delete implements SaveRepo.
func (m *MongoRepo) Delete(ctx context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	res, err := m.collection.DeleteOne(ctx, bson.M{"slot": slot})
	if err != nil {
		return fmt.Errorf("не удалось удалить слот %s: %w", slot, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return nil
}

// List implements SaveRepo. The data field is projected out.
func (m *MongoRepo) List(ctx context.Context) ([]SlotInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "slot", Value: 1}}).
		SetProjection(bson.M{"data": 0})
	cur, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []SlotInfo
	for cur.Next(ctx) {
		var info SlotInfo
		if err := cur.Decode(&info); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, cur.Err()
}

// Close disconnects the client.
func (m *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
