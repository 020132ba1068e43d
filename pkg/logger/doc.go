// Package logger builds the service's *slog.Logger.
//
// New applies functional options (format, level, static attributes) and wraps
// the handler with LogHandlerDecorator, which pulls request-scoped values out
// of context.Context on every record. FromConfig maps the APP_ENV,
// SERVICE_NAME and LOG_LEVEL environment settings onto those options.
//
// Attribute helpers in attr.go keep key names consistent across packages:
//
//	log := logger.New(append(logger.FromConfig(cfg),
//	    logger.WithContextExtractors(logger.OrganizationExtractor(quota.OrganizationIDFromContext)),
//	)...)
//
//	log.InfoContext(ctx, "quota exceeded",
//	    logger.Resource("incidents"),
//	    logger.Usage(100, 100),
//	)
package logger
