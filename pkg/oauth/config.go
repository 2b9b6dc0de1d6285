package oauth

// Polar endpoints and provider-specific names.
const (
	ProviderName = "polar"

	DefaultAuthURL  = "https://flow.polar.com/oauth2/authorization"
	DefaultTokenURL = "https://polarremote.com/v2/oauth2/token"

	// UserIDParam is the non-standard token response field holding the
	// Polar user identifier.
	UserIDParam = "x_user_id"

	// DefaultStateKey is the session key the state token is stored under.
	DefaultStateKey = "oauth_state:" + ProviderName
)

// Config holds Polar OAuth client configuration.
// AuthURL and TokenURL default to the Polar endpoints when empty.
type Config struct {
	ClientID     string   `env:"POLAR_OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"POLAR_OAUTH_CLIENT_SECRET"`
	AuthURL      string   `env:"POLAR_OAUTH_AUTH_URL" envDefault:"https://flow.polar.com/oauth2/authorization"`
	TokenURL     string   `env:"POLAR_OAUTH_TOKEN_URL" envDefault:"https://polarremote.com/v2/oauth2/token"`
	Scopes       []string `env:"POLAR_OAUTH_SCOPES" envSeparator:","`
}

// Validate reports a missing client ID or secret as a KindConfiguration
// error.
func (c Config) Validate() error {
	_, err := c.validate()
	return err
}

// validate checks the client identifiers and fills in endpoint defaults.
func (c Config) validate() (Config, error) {
	if c.ClientID == "" {
		return c, newError(KindConfiguration, ErrMissingClientID)
	}
	if c.ClientSecret == "" {
		return c, newError(KindConfiguration, ErrMissingClientSecret)
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	return c, nil
}
