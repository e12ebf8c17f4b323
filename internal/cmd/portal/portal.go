// Package portal parses portal command flags and starts the HTTP service.
package portal

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/vereinswerk/portal/internal/auth"
	"github.com/vereinswerk/portal/internal/directory/postgres"
	"github.com/vereinswerk/portal/internal/events"
	"github.com/vereinswerk/portal/internal/mail"
	"github.com/vereinswerk/portal/internal/members"
	"github.com/vereinswerk/portal/internal/notifications"
	entrypoint "github.com/vereinswerk/portal/internal/platform/cmd"
	"github.com/vereinswerk/portal/internal/settings"
	"github.com/vereinswerk/portal/internal/store/sqlite"
	"github.com/vereinswerk/portal/internal/web"
	"github.com/vereinswerk/portal/internal/web/modules/adminweb"
	"github.com/vereinswerk/portal/internal/web/modules/authweb"
	"github.com/vereinswerk/portal/internal/web/modules/eventsweb"
	"github.com/vereinswerk/portal/internal/web/modules/notificationsweb"
	"github.com/vereinswerk/portal/internal/web/modules/profileweb"
	"github.com/vereinswerk/portal/internal/web/modules/publicweb"
	"github.com/vereinswerk/portal/internal/web/platform/requestmeta"
)

// Config holds portal command configuration.
type Config struct {
	Addr            string        `env:"PORTAL_ADDR" envDefault:":3000"`
	BaseURL         string        `env:"PORTAL_BASE_URL" envDefault:"http://localhost:3000"`
	SQLitePath      string        `env:"PORTAL_SQLITE_PATH" envDefault:"data/portal.db"`
	DirectoryDSN    string        `env:"PORTAL_DIRECTORY_DSN"`
	EnvFile         string        `env:"PORTAL_ENV_FILE" envDefault:".env"`
	SessionDays     int           `env:"PORTAL_SESSION_DAYS" envDefault:"30"`
	CleanupInterval time.Duration `env:"PORTAL_SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
	TrustProxy      bool          `env:"PORTAL_TRUST_PROXY" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The portal listen address")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "The public portal URL used in outbound links")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "The SQLite database file path")
	fs.StringVar(&cfg.DirectoryDSN, "directory-dsn", cfg.DirectoryDSN, "The PostgreSQL member directory DSN")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "The env file holding runtime-editable settings")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "Trust X-Forwarded-Proto from the reverse proxy")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the portal HTTP service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.DirectoryDSN == "" {
		return errors.New("directory DSN is required")
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePortal, func(ctx context.Context) error {
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

		provider := settings.NewProvider(cfg.EnvFile)
		mailer := mail.NewSMTPSender(provider)

		authService := auth.NewService(auth.Config{
			Credentials:   localStore,
			Sessions:      localStore,
			ResetTokens:   localStore,
			Directory:     dir,
			AdminMemberID: provider.AdminMemberID,
			SessionTTL:    time.Duration(cfg.SessionDays) * 24 * time.Hour,
		})
		authService.StartCleanup(ctx, cfg.CleanupInterval)

		memberService := members.NewService(dir, localStore, localStore, authService)
		notificationService := notifications.NewService(localStore, dir, mailer)
		eventService := events.NewService(localStore)

		scheme := requestmeta.SchemePolicy{TrustForwardedProto: cfg.TrustProxy}
		server := web.NewServer(cfg.Addr,
			publicweb.New(provider),
			authweb.New(authService,
				authweb.WithMailer(mailer),
				authweb.WithBaseURL(cfg.BaseURL),
				authweb.WithSchemePolicy(scheme),
				authweb.WithSessionTTL(time.Duration(cfg.SessionDays)*24*time.Hour)),
			profileweb.New(memberService, authService),
			notificationsweb.New(notificationService, authService),
			eventsweb.New(eventService, authService),
			adminweb.New(provider, mailer, memberService, authService),
		)
		return server.ListenAndServe(ctx)
	})
}
