package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis url is empty, set REDIS_URL")
	ErrFailedToParseRedisConnString = errors.New("invalid redis url")
	ErrRedisNotReady                = errors.New("redis did not answer ping before the connect timeout")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
