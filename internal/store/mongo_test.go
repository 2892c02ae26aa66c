package store

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) (*MongoStore, *countingObserver) {
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	observer := &countingObserver{}
	st := NewMongoStore(db, DefaultCartTTL, RetryPolicy{}, observer)
	require.NoError(t, st.EnsureIndexes(ctx))
	return st, observer
}

func TestMongo_GetNotFound(t *testing.T) {
	st, _ := setupTestMongo(t)

	_, err := st.Get(context.Background(), "nobody")

	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestMongo_UpdateCreatesAndPreservesPrices(t *testing.T) {
	st, _ := setupTestMongo(t)
	ctx := context.Background()

	_, err := st.Update(ctx, "u1", func(_ context.Context, c *domain.Cart) (*domain.Cart, error) {
		c.Items = append(c.Items, line("p1", 3, "19.99"))
		c.RecalculateTotals()
		return c, nil
	})
	require.NoError(t, err)

	cart, err := st.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "19.99", cart.Items[0].Price.String())
	assert.Equal(t, "59.97", cart.TotalAmount.String())
	assert.Equal(t, 3, cart.TotalQuantity)
}

func TestMongo_UpdateRetriesOnVersionConflict(t *testing.T) {
	st, observer := setupTestMongo(t)
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, cartWith("u1", line("p1", 1, "1.00"))))

	attempts := 0
	cart, err := st.Update(ctx, "u1", func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
		attempts++
		if attempts == 1 {
			require.NoError(t, st.Put(ctx, cartWith("u1", line("p1", 1, "1.00"), line("p2", 1, "2.00"))))
		}
		c.Items = append(c.Items, line("p3", 1, "3.00"))
		c.RecalculateTotals()
		return c, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, observer.count(mongoBackend))
	assert.Len(t, cart.Items, 3)
}

func TestMongo_ConcurrentFirstWritersConflictOnInsert(t *testing.T) {
	st, observer := setupTestMongo(t)
	ctx := context.Background()

	attempts := 0
	_, err := st.Update(ctx, "u1", func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
		attempts++
		if attempts == 1 {
			require.NoError(t, st.Put(ctx, cartWith("u1", line("p9", 1, "9.00"))))
		}
		c.Items = append(c.Items, line("p1", 1, "1.00"))
		c.RecalculateTotals()
		return c, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, observer.count(mongoBackend))

	cart, err := st.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestMongo_Delete(t *testing.T) {
	st, _ := setupTestMongo(t)
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, cartWith("u1")))

	require.NoError(t, st.Delete(ctx, "u1"))
	require.NoError(t, st.Delete(ctx, "u1"))

	_, err := st.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}
