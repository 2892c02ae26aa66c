package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIndex stores one document per product: {_id: productID, users: [...]}.
type MongoIndex struct {
	collection *mongo.Collection
}

func NewMongoIndex(db *mongo.Database) *MongoIndex {
	return &MongoIndex{collection: db.Collection("product_index")}
}

type indexDocument struct {
	ProductID string   `bson:"_id"`
	Users     []string `bson:"users"`
}

func (m *MongoIndex) AddMember(ctx context.Context, productID, userID string) error {
	update := bson.M{"$addToSet": bson.M{"users": userID}}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to add index member: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (m *MongoIndex) RemoveMember(ctx context.Context, productID, userID string) error {
	update := bson.M{"$pull": bson.M{"users": userID}}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, update); err != nil {
		return fmt.Errorf("failed to remove index member: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (m *MongoIndex) MembersOf(ctx context.Context, productID string) ([]string, error) {
	var doc indexDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if doc.Users == nil {
		return []string{}, nil
	}
	return doc.Users, nil
}
