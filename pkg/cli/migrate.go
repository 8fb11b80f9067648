package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

func newMigrateCommand(e *env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}
	cmd.Flags.SetOutput(e.out)
	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return e.runMigrate(ctx)
	}
	return cmd
}

func (e *env) runMigrate(ctx context.Context) error {
	db, err := store.Open(ctx, e.cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(ctx, e.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Applied %d migration(s) to %s database\n", applied, db.Dialect.Name)
	return nil
}

// openStore opens and migrates the configured database
func (e *env) openStore(ctx context.Context) (*store.Store, *audit.DBLogger, func(), error) {
	db, err := store.Open(ctx, e.cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := db.Migrate(ctx, e.logger); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	auditLog, err := audit.NewDBLogger(db, nil)
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	return store.New(db, auditLog), auditLog, func() { db.Close() }, nil
}
