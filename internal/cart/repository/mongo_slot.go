package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/cache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type slotDocument struct {
	SessionID string    `bson:"session_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoSlot stores one document per shopper session in the cart_slots collection.
type MongoSlot struct {
	collection *mongo.Collection
}

func NewMongoSlot(db *mongo.Database) *MongoSlot {
	return &MongoSlot{
		collection: db.Collection("cart_slots"),
	}
}

func (m *MongoSlot) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var doc slotDocument
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cache.ErrSlotEmpty
		}
		return nil, fmt.Errorf("failed to load cart slot: %w", err)
	}
	return []byte(doc.Payload), nil
}

func (m *MongoSlot) Save(ctx context.Context, sessionID string, payload []byte) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{"$set": slotDocument{
		SessionID: sessionID,
		Payload:   string(payload),
		UpdatedAt: time.Now(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save cart slot: %w", err)
	}
	return nil
}

func (m *MongoSlot) Delete(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete cart slot: %w", err)
	}
	return nil
}

func (m *MongoSlot) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
