// Package mongo connects to MongoDB with the official v2 driver.
//
// Config is read from MONGODB_* environment variables. New dials and pings
// with retries, NewWithDatabase returns a handle to the configured database
// and Healthcheck adapts Ping to the func(context.Context) error shape used
// by readiness probes.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "")
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store := mongostore.New(db, "")
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
package mongo
