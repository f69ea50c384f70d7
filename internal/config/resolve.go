package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stacklok/toolhive-core/env"

	"github.com/xabinapal/tiledb-cloud/internal/logger"
)

const (
	// DefaultHost is used when neither the environment nor the settings file name a host.
	DefaultHost = "https://api.tiledb.com"

	// EnvToken holds an API token; it overrides the stored api_key.
	EnvToken = "TILEDB_REST_TOKEN"
	// EnvHost overrides the stored host.
	EnvHost = "TILEDB_REST_HOST"
	// EnvUsername is the fallback username when the settings file has none.
	EnvUsername = "TILEDB_REST_USERNAME"
	// EnvPassword is the fallback password when the settings file has none.
	EnvPassword = "TILEDB_REST_PASSWORD"
	// EnvIgnoreSSL disables TLS verification unless the settings file says otherwise.
	EnvIgnoreSSL = "TILEDB_REST_IGNORE_SSL_VALIDATION"

	// APIKeyHeader is the request header that carries the API token.
	APIKeyHeader = "X-TILEDB-REST-API-KEY"
)

// AuthMode identifies which credentials a Configuration will present.
type AuthMode int

const (
	// AuthNone sends no credentials.
	AuthNone AuthMode = iota
	// AuthAPIKey sends the API token in APIKeyHeader.
	AuthAPIKey
	// AuthBasic sends username and password with HTTP basic auth.
	AuthBasic
)

// String returns the auth mode name.
func (m AuthMode) String() string {
	switch m {
	case AuthAPIKey:
		return "api_key"
	case AuthBasic:
		return "basic"
	default:
		return "none"
	}
}

// Configuration is the resolved connection configuration.
type Configuration struct {
	// Host is the base URL of the TileDB Cloud REST service.
	Host string
	// APIKey is the API token, if any.
	APIKey string
	// Username and Password are kept even when APIKey wins the auth mode,
	// so that Persist writes them back unchanged.
	Username string
	Password string
	// VerifyTLS enables TLS certificate validation.
	VerifyTLS bool
	// Retries is the retry policy the transport applies.
	Retries RetryPolicy
}

// AuthMode reports the active authentication mode. A token takes priority
// over a username.
func (c *Configuration) AuthMode() AuthMode {
	switch {
	case c.APIKey != "":
		return AuthAPIKey
	case c.Username != "":
		return AuthBasic
	default:
		return AuthNone
	}
}

// APIKeyHeaders returns the header map the transport sends with every
// request; empty when no token is configured.
func (c *Configuration) APIKeyHeaders() map[string]string {
	if c.APIKey == "" {
		return map[string]string{}
	}
	return map[string]string{APIKeyHeader: c.APIKey}
}

// Clone returns a copy that does not share slices with c.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	out.Retries = c.Retries.clone()
	return &out
}

// AuthState is the authentication outcome of a resolution.
type AuthState struct {
	authenticated bool
	// Reason explains an unauthenticated state.
	Reason string
}

// Authenticated reports whether a token or username was resolved.
func (s AuthState) Authenticated() bool {
	return s.authenticated
}

// Err returns nil when authenticated and an ErrNotAuthenticated-wrapping
// error otherwise, for callers that treat "not logged in" as fatal.
func (s AuthState) Err() error {
	if s.authenticated {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotAuthenticated, s.Reason)
}

// String returns "authenticated" or "unauthenticated".
func (s AuthState) String() string {
	if s.authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

const reasonNoCredentials = "no API token or username configured"

func deriveAuthState(apiKey, username string) AuthState {
	if apiKey == "" && username == "" {
		return AuthState{Reason: reasonNoCredentials}
	}
	return AuthState{authenticated: true}
}

// ParseBool is a loose boolean: "true", "1" and "on" in any case are true,
// everything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "on":
		return true
	default:
		return false
	}
}

// Option configures Resolve, Persist and Session.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	secrets SecretStore
}

// WithLogger sets the logger used for the "must log in first" warning.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSecretStore keeps api_key and password in store instead of the settings file.
func WithSecretStore(store SecretStore) Option {
	return func(o *options) {
		o.secrets = store
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	return o
}

// Resolve merges the environment and the settings file at path into a Configuration.
//
// Token and host prefer the environment; username and password prefer the
// settings file. TLS verification defaults to the inverse of EnvIgnoreSSL and
// is overwritten by the file's verify_ssl when present. A missing file is not
// an error; a file without a "host" key is one unless EnvHost is set. When
// neither a token nor a username resolves, a warning is logged and an
// unauthenticated but usable Configuration is returned.
func Resolve(envReader env.Reader, path string, opts ...Option) (*Configuration, AuthState, error) {
	o := buildOptions(opts)

	stored, err := LoadSettings(path)
	if err != nil {
		return nil, AuthState{}, err
	}
	if stored != nil && !stored.HasHost() && envReader.Getenv(EnvHost) == "" {
		return nil, AuthState{}, newConfigurationError(path, "malformed", ErrMissingHost)
	}
	if stored != nil {
		stored.fillSecrets(o.secrets, firstNonEmpty(stored.host(), DefaultHost))
	}

	cfg := &Configuration{
		APIKey:    firstNonEmpty(envReader.Getenv(EnvToken), stored.apiKey()),
		Host:      firstNonEmpty(envReader.Getenv(EnvHost), stored.host(), DefaultHost),
		Username:  firstNonEmpty(stored.username(), envReader.Getenv(EnvUsername)),
		Password:  firstNonEmpty(stored.password(), envReader.Getenv(EnvPassword)),
		VerifyTLS: !ParseBool(envReader.Getenv(EnvIgnoreSSL)),
		Retries:   DefaultRetryPolicy(),
	}
	if verify, ok := stored.VerifyTLS(); ok {
		cfg.VerifyTLS = verify
	}

	state := deriveAuthState(cfg.APIKey, cfg.Username)
	if !state.Authenticated() {
		o.logger.Warn("You must log in first: no TileDB Cloud credentials configured",
			"settings_file", path,
			"host", cfg.Host,
		)
	}

	return cfg, state, nil
}

// Persist writes cfg to path. host and verify_ssl are always written;
// api_key, username and password only when non-empty. With a secret store,
// api_key and password go to the store instead of the file.
func Persist(ctx context.Context, cfg *Configuration, path string, opts ...Option) error {
	if cfg == nil {
		return ErrNoConfiguration
	}
	o := buildOptions(opts)

	verify := cfg.VerifyTLS
	host := cfg.Host
	s := &StoredSettings{
		Host:      &host,
		APIKey:    optional(cfg.APIKey),
		Username:  optional(cfg.Username),
		Password:  optional(cfg.Password),
		VerifySSL: &verify,
	}

	if o.secrets != nil {
		secretHost := firstNonEmpty(host, DefaultHost)
		if err := storeSecret(o.secrets, SecretKey(secretAPIKey, secretHost), cfg.APIKey); err != nil {
			return err
		}
		if err := storeSecret(o.secrets, SecretKey(secretPassword, secretHost), cfg.Password); err != nil {
			return err
		}
		s.APIKey = nil
		s.Password = nil
	}

	return writeSettings(ctx, path, s)
}

// ClearCredentials removes api_key, username and password from the settings
// file at path. host and verify_ssl are kept exactly as stored, so values
// taken from the environment never leak into the file. With a secret store,
// the secrets kept for the stored host are deleted as well. It returns that
// host, or "" when there is no settings file.
func ClearCredentials(ctx context.Context, path string, opts ...Option) (string, error) {
	stored, err := LoadSettings(path)
	if err != nil || stored == nil {
		return "", err
	}
	o := buildOptions(opts)

	host := stored.host()
	secretHost := firstNonEmpty(host, DefaultHost)
	if o.secrets != nil {
		for _, field := range []string{secretAPIKey, secretPassword} {
			if err := storeSecret(o.secrets, SecretKey(field, secretHost), ""); err != nil {
				return "", err
			}
		}
	}

	s := &StoredSettings{VerifySSL: stored.VerifySSL}
	if stored.HasHost() {
		s.Host = &host
	}
	if err := writeSettings(ctx, path, s); err != nil {
		return "", err
	}
	return secretHost, nil
}

func storeSecret(store SecretStore, key, secret string) error {
	if secret == "" {
		if err := store.Delete(key); err != nil {
			return fmt.Errorf("failed to clear secret %s: %w", key, err)
		}
		return nil
	}
	if err := store.Set(key, secret); err != nil {
		return fmt.Errorf("failed to store secret %s: %w", key, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
