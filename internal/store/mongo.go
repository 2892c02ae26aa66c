package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoBackend = "mongo"

// ConnectMongoDB opens a pooled client and verifies it with a ping.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("cart-service").
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}

// MongoStore keeps one document per user keyed by _id and commits with a
// compare-and-swap on the document's version field. Expiry is delegated to
// a TTL index on updated_at.
type MongoStore struct {
	collection *mongo.Collection
	ttl        time.Duration
	policy     RetryPolicy
	observer   ConflictObserver
}

func NewMongoStore(db *mongo.Database, ttl time.Duration, policy RetryPolicy, observer ConflictObserver) *MongoStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &MongoStore{
		collection: db.Collection("carts"),
		ttl:        ttl,
		policy:     policy,
		observer:   observer,
	}
}

type cartDocument struct {
	UserID        string         `bson:"_id"`
	Version       int64          `bson:"version"`
	Items         []itemDocument `bson:"items"`
	TotalAmount   string         `bson:"total_amount"`
	TotalQuantity int            `bson:"total_quantity"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	ProductID string `bson:"product_id"`
	Quantity  int    `bson:"quantity"`
	Name      string `bson:"name"`
	Brand     string `bson:"brand"`
	Price     string `bson:"price"`
	ImageURL  string `bson:"image_url"`
	Available bool   `bson:"available"`
}

func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(m.ttl.Seconds())),
	}
	if _, err := m.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, _, err := m.load(ctx, userID)
	return cart, err
}

func (m *MongoStore) Put(ctx context.Context, cart *domain.Cart) error {
	doc := toDocument(cart, 0, time.Now())
	update := bson.M{
		"$set": bson.M{
			"items":          doc.Items,
			"total_amount":   doc.TotalAmount,
			"total_quantity": doc.TotalQuantity,
			"updated_at":     doc.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": cart.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, userID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, userID string, mutate MutateFunc) (*domain.Cart, error) {
	return runOptimistic(ctx, m.policy, mongoBackend, m.observer, func() (*domain.Cart, error) {
		return m.attempt(ctx, userID, mutate)
	})
}

func (m *MongoStore) attempt(ctx context.Context, userID string, mutate MutateFunc) (*domain.Cart, error) {
	current, version, err := m.load(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		current, version = domain.NewCart(userID), 0
	} else if err != nil {
		return nil, err
	}

	next, err := mutate(ctx, current)
	if errors.Is(err, ErrNoChange) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	doc := toDocument(next, version+1, time.Now())

	// version 0 means nothing was there when we read; the insert races
	// other first writers on the _id unique index.
	if version == 0 {
		_, err := m.collection.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert cart: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return next, nil
	}

	result, err := m.collection.ReplaceOne(ctx, bson.M{"_id": userID, "version": version}, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to replace cart: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrConflict
	}
	return next, nil
}

func (m *MongoStore) load(ctx context.Context, userID string) (*domain.Cart, int64, error) {
	var doc cartDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get cart: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	cart, err := doc.toDomain()
	if err != nil {
		return nil, 0, err
	}
	return cart, doc.Version, nil
}

func toDocument(c *domain.Cart, version int64, now time.Time) cartDocument {
	items := make([]itemDocument, len(c.Items))
	for i, item := range c.Items {
		items[i] = itemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Name:      item.Name,
			Brand:     item.Brand,
			Price:     item.Price.String(),
			ImageURL:  item.ImageURL,
			Available: item.Available,
		}
	}
	return cartDocument{
		UserID:        c.UserID,
		Version:       version,
		Items:         items,
		TotalAmount:   c.TotalAmount.String(),
		TotalQuantity: c.TotalQuantity,
		UpdatedAt:     now,
	}
}

func (d cartDocument) toDomain() (*domain.Cart, error) {
	cart := domain.NewCart(d.UserID)
	cart.TotalQuantity = d.TotalQuantity

	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("cart %s total: %w: %w", d.UserID, domain.ErrMalformedCart, err)
	}
	cart.TotalAmount = total

	for _, item := range d.Items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("cart %s item %s price: %w: %w", d.UserID, item.ProductID, domain.ErrMalformedCart, err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Name:      item.Name,
			Brand:     item.Brand,
			Price:     price,
			ImageURL:  item.ImageURL,
			Available: item.Available,
		})
	}
	return cart, nil
}
