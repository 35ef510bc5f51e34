package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/pkg/mongo"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
	"github.com/dmitrymomot/journalkit/pkg/subscription/mongostore"
	"github.com/dmitrymomot/journalkit/pkg/subscription/storetest"
)

// Requires a running MongoDB, e.g. MONGODB_TEST_URL=mongodb://localhost:27017.
func TestStore(t *testing.T) {
	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" {
		t.Skip("MONGODB_TEST_URL is not set")
	}

	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    10,
		RetryAttempts:  1,
	}, "journalkit_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})
	require.NoError(t, mongo.Healthcheck(db.Client())(ctx))

	store := mongostore.New(db, "")
	require.NoError(t, store.EnsureIndexes(ctx))

	storetest.Run(t, func(*testing.T) subscription.Store { return store })
}

func TestNew_PanicsOnNilDatabase(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { mongostore.New(nil, "subscriptions") })
}
