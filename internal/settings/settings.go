// Package settings provides the portal's runtime-editable configuration.
//
// Branding, theming, and SMTP settings live in environment variables backed
// by an env file administrators edit through the portal. The file is loaded
// into the process environment at startup so edits survive restarts. Reads go
// through a short-lived cache; writes persist to the env file, update the
// process environment, and invalidate the cache so edits apply without a
// restart.
package settings

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how stale a cached settings read may be.
const DefaultCacheTTL = 60 * time.Second

// Theme holds the portal's color scheme.
type Theme struct {
	Accent string `json:"accent"`
	Bg     string `json:"bg"`
	Card   string `json:"card"`
	Text   string `json:"text"`
	Muted  string `json:"muted"`
}

// PWA holds the installable-app names.
type PWA struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// Public is the settings subset served without authentication.
type Public struct {
	SiteTitle string   `json:"siteTitle"`
	OrgName   string   `json:"orgName"`
	LogoURL   string   `json:"logoUrl"`
	Theme     Theme    `json:"theme"`
	DSGVOURL  string   `json:"dsgvoUrl"`
	AdminMenu []string `json:"adminMenu"`
	PWA       PWA      `json:"pwa"`
}

// SMTP holds outbound mail configuration. Pass is never serialized back to
// clients.
type SMTP struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Secure    bool   `json:"secure"`
	User      string `json:"user"`
	Pass      string `json:"-"`
	FromName  string `json:"fromName"`
	FromEmail string `json:"fromEmail"`
}

// MailLayout wraps every outbound mail body.
type MailLayout struct {
	HeaderHTML string `json:"headerHtml"`
	FooterHTML string `json:"footerHtml"`
}

// All is the full settings view for administrators.
type All struct {
	Public
	SMTP          SMTP       `json:"smtp"`
	MailLayout    MailLayout `json:"mailLayout"`
	AdminMemberID string     `json:"adminMemberId"`
}

// Configured reports whether outbound mail can be attempted.
func (s SMTP) Configured() bool {
	return s.Host != "" && s.FromEmail != ""
}

// Provider reads and persists portal settings.
type Provider struct {
	envPath  string
	cacheTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	cached   *All
	cachedAt time.Time
}

// Option tweaks a Provider.
type Option func(*Provider)

// WithCacheTTL overrides the cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.cacheTTL = ttl }
}

// WithClock overrides the clock in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a settings provider persisting to the env file at
// envPath. Values already persisted to the file are loaded into the process
// environment so admin edits survive restarts; variables set in the
// environment before startup take precedence over the file.
func NewProvider(envPath string, opts ...Option) *Provider {
	p := &Provider{
		envPath:  envPath,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	loadEnvFile(envPath)
	return p
}

// Public returns the unauthenticated settings view.
func (p *Provider) Public() Public {
	return p.load().Public
}

// All returns the full admin settings view. The SMTP password field is
// populated for internal use; transport layers must never echo it.
func (p *Provider) All() All {
	return p.load()
}

// SMTP returns the current mail configuration, read fresh through the cache
// so admin edits reach the mailer without a restart.
func (p *Provider) SMTP() SMTP {
	return p.load().SMTP
}

// MailLayout returns the header/footer wrapped around outbound mail.
func (p *Provider) MailLayout() MailLayout {
	return p.load().MailLayout
}

// AdminMemberID returns the configured administrator member ID, if any.
func (p *Provider) AdminMemberID() string {
	return p.load().AdminMemberID
}

func (p *Provider) load() All {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.cached != nil && now.Sub(p.cachedAt) < p.cacheTTL {
		return *p.cached
	}

	all := readFromEnv()
	p.cached = &all
	p.cachedAt = now
	return all
}

func readFromEnv() All {
	port, err := strconv.Atoi(envOr("SMTP_PORT", "587"))
	if err != nil {
		port = 587
	}
	return All{
		Public: Public{
			SiteTitle: envOr("SITE_TITLE", "Mitgliederportal"),
			OrgName:   os.Getenv("ORG_NAME"),
			LogoURL:   os.Getenv("LOGO_URL"),
			Theme: Theme{
				Accent: envOr("ACCENT_COLOR", "#b91c1c"),
				Bg:     envOr("BG_COLOR", "#f6f6f6"),
				Card:   envOr("CARD_COLOR", "#ffffff"),
				Text:   envOr("TEXT_COLOR", "#111827"),
				Muted:  envOr("MUTED_COLOR", "#6b7280"),
			},
			DSGVOURL:  os.Getenv("DSGVO_URL"),
			AdminMenu: splitList(envOr("ADMIN_MENU", "settings,smtp,system")),
			PWA: PWA{
				Name:      envOr("PWA_NAME", "Mitgliederportal"),
				ShortName: envOr("PWA_SHORT_NAME", "Portal"),
			},
		},
		SMTP: SMTP{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      port,
			Secure:    strings.EqualFold(os.Getenv("SMTP_SECURE"), "true"),
			User:      os.Getenv("SMTP_USER"),
			Pass:      os.Getenv("SMTP_PASS"),
			FromName:  os.Getenv("SMTP_FROM_NAME"),
			FromEmail: os.Getenv("SMTP_FROM_EMAIL"),
		},
		MailLayout: MailLayout{
			HeaderHTML: os.Getenv("EMAIL_HEADER_HTML"),
			FooterHTML: os.Getenv("EMAIL_FOOTER_HTML"),
		},
		AdminMemberID: os.Getenv("ADMIN_MEMBER_ID"),
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var envLinePattern = regexp.MustCompile(`^([A-Z0-9_]+)=(.*)$`)

// loadEnvFile mirrors a persisted env file into the process environment.
// Variables already present in the environment are left alone. A missing or
// unreadable file is not an error; the portal then runs on defaults.
func loadEnvFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n") {
		match := envLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if _, set := os.LookupEnv(match[1]); set {
			continue
		}
		os.Setenv(match[1], unquoteEnvValue(match[2]))
	}
}

// Update persists key/value pairs to the env file, mirrors them into the
// process environment, and invalidates the cache. Existing unrelated lines
// in the file are preserved in place.
func (p *Provider) Update(updates map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lines []string
	if content, err := os.ReadFile(p.envPath); err == nil {
		lines = strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read env file: %w", err)
	}

	lineForKey := map[string]int{}
	for i, line := range lines {
		if match := envLinePattern.FindStringSubmatch(line); match != nil {
			lineForKey[match[1]] = i
		}
	}

	for key, value := range updates {
		formatted := key + "=" + quoteEnvValue(value)
		if i, ok := lineForKey[key]; ok {
			lines[i] = formatted
		} else {
			lines = append(lines, formatted)
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set env %s: %w", key, err)
		}
	}

	var kept []string
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	content := strings.Join(kept, "\n") + "\n"
	if err := os.WriteFile(p.envPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}

	p.cached = nil
	return nil
}

func quoteEnvValue(value string) string {
	if strings.ContainsAny(value, " #=\n") {
		return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	return value
}

func unquoteEnvValue(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return strings.ReplaceAll(value[1:len(value)-1], `\"`, `"`)
	}
	return value
}
