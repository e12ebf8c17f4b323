// Package resetpw sets a member's portal password from the command line,
// bypassing the old-password check. Meant for operators recovering locked-out
// accounts.
package resetpw

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/directory/postgres"
	entrypoint "github.com/vereinswerk/portal/internal/platform/cmd"
	"github.com/vereinswerk/portal/internal/store/sqlite"
)

// Config holds resetpw command configuration. Email and Password come from
// the positional arguments.
type Config struct {
	SQLitePath   string `env:"PORTAL_SQLITE_PATH" envDefault:"data/portal.db"`
	DirectoryDSN string `env:"PORTAL_DIRECTORY_DSN"`

	Email    string
	Password string
}

// ParseConfig parses environment, flags, and the two positional arguments
// into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "The SQLite database file path")
	fs.StringVar(&cfg.DirectoryDSN, "directory-dsn", cfg.DirectoryDSN, "The PostgreSQL member directory DSN")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return Config{}, errors.New("usage: resetpw [flags] <email> <new-password>")
	}
	cfg.Email = rest[0]
	cfg.Password = rest[1]
	return cfg, nil
}

// Run resets the password and exits. The email must resolve in the member
// directory, matching the password reset flow inside the portal.
func Run(ctx context.Context, cfg Config) error {
	if cfg.DirectoryDSN == "" {
		return errors.New("directory DSN is required")
	}
	localStore, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer localStore.Close()

	dir, err := postgres.Connect(ctx, cfg.DirectoryDSN)
	if err != nil {
		return fmt.Errorf("connect member directory: %w", err)
	}
	defer dir.Close()

	svc := auth.NewService(auth.Config{
		Credentials: localStore,
		Sessions:    localStore,
		ResetTokens: localStore,
		Directory:   dir,
	})
	if err := svc.AdminResetPassword(ctx, cfg.Email, cfg.Password); err != nil {
		return err
	}
	log.Printf("password updated for %s", auth.NormalizeEmail(cfg.Email))
	return nil
}
