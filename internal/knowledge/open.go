package knowledge

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bom-matcher/internal/config"
)

// Open creates and migrates the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "memory":
		st = NewMemory()
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("knowledge: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "knowledge: open %s", cfg.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "knowledge: migrate")
	}
	return st, nil
}
