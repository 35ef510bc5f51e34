package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("mongo is not reachable")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
	ErrDatabaseNameRequired   = errors.New("mongo database name is empty, set MONGODB_DATABASE")
)
