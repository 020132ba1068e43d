// Package pg bootstraps the PostgreSQL layer used by the quota engine.
//
// It wraps github.com/jackc/pgx/v5 for pooling and github.com/pressly/goose/v3
// for schema migrations. The organization_limits schema ships embedded in the
// binary (see Migrations), so a fresh database only needs:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
// Error helpers such as IsDuplicateKeyError classify *pgconn.PgError values by
// SQLSTATE so store code can react to constraint violations.
package pg
