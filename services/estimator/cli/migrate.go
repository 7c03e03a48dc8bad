package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/universal-field-robots/rmf-task/internal/postgres/migrations"
)

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Connect to PostgreSQL and apply the embedded schema migrations in
filename order.

Reads the DSN from --postgres-dsn flag, POSTGRES_DSN env var, or config file.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "postgres-dsn", "", "PostgreSQL connection string (overrides config)")
}

func runMigrate(_ *cobra.Command, _ []string) error {
	dsn := migrateDSN
	if dsn == "" {
		dsn = viper.GetString("postgres_dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	// Directory entries come back sorted, so the NNN_ prefixes fix the
	// apply order.
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, e := range entries {
		sql, err := migrations.FS.ReadFile(e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("execute migration %s: %w", e.Name(), err)
		}
		fmt.Printf("applied %s\n", e.Name())
	}

	fmt.Println("migrations complete")
	return nil
}
