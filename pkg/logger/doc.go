// Package logger builds *slog.Logger values with functional options.
//
// New picks a text or JSON handler, applies static attributes, masks
// sensitive keys and, when ContextExtractor callbacks are registered, copies
// request-scoped values out of context.Context on every record.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.AppEnv, "journalkit"),
//	    logger.WithConfig(cfg.Log),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "webhook processed",
//	    logger.Provider("stripe"),
//	    logger.EventID(evt.ID),
//	    logger.Outcome("applied"),
//	)
//
// # Attributes
//
// attr.go holds constructors that keep key names consistent across the
// billing code: UserID, Provider, EventID, EventType, Outcome, Status, Plan,
// RequestID and friends. Error, UserID and RequestID return an empty Attr
// for nil input so they can be passed unconditionally:
//
//	log.Info("status checked", logger.Error(err))
//
// # Environments
//
// WithEnvironment maps an environment name (EnvDevelopment, EnvStaging,
// EnvProduction, or the short forms "stage" and "prod") to a preset:
// development logs text at debug level, the others JSON at info level.
// WithConfig applies LOG_LEVEL and LOG_FORMAT on top.
//
// # Redaction
//
// Attributes whose key matches DefaultRedactedKeys (webhook secrets,
// signatures, tokens) are written as Redacted. WithRedactedKeys replaces
// the list.
package logger
