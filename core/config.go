package core

import (
	"fmt"
	"strings"
)

const DefaultGraphAPIVersion = "v23.0"

type OAuthSettings struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
	AuthURL      string   `koanf:"auth_url" mapstructure:"auth_url"`
	TokenURL     string   `koanf:"token_url" mapstructure:"token_url"`
}

// Complete reports whether the settings are sufficient to build an adapter.
// AuthURL and TokenURL fall back to adapter defaults and are not required.
func (s OAuthSettings) Complete() bool {
	return strings.TrimSpace(s.ClientID) != "" &&
		strings.TrimSpace(s.ClientSecret) != "" &&
		strings.TrimSpace(s.RedirectURI) != ""
}

type MetaConfig struct {
	AppID           string `koanf:"app_id" mapstructure:"app_id"`
	AppSecret       string `koanf:"app_secret" mapstructure:"app_secret"`
	GraphAPIVersion string `koanf:"graph_api_version" mapstructure:"graph_api_version"`
}

// DatabaseConfig selects the SQL credential store. An empty driver keeps
// credentials in memory.
type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type PublishConfig struct {
	Parallelism int `koanf:"parallelism" mapstructure:"parallelism"`
}

type Config struct {
	ServiceName  string                   `koanf:"service_name" mapstructure:"service_name"`
	MasterSecret string                   `koanf:"master_secret" mapstructure:"master_secret"`
	Meta         MetaConfig               `koanf:"meta" mapstructure:"meta"`
	Publish      PublishConfig            `koanf:"publish" mapstructure:"publish"`
	Database     DatabaseConfig           `koanf:"database" mapstructure:"database"`
	Platforms    map[string]OAuthSettings `koanf:"platforms" mapstructure:"platforms"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "social",
		Meta: MetaConfig{
			GraphAPIVersion: DefaultGraphAPIVersion,
		},
		Publish: PublishConfig{
			Parallelism: 1,
		},
		Platforms: map[string]OAuthSettings{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Publish.Parallelism < 0 {
		return fmt.Errorf("core: publish.parallelism must not be negative")
	}
	switch strings.TrimSpace(strings.ToLower(c.Database.Driver)) {
	case "", "postgres", "sqlite3":
	default:
		return fmt.Errorf("core: database.driver %q is not supported", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.Driver) != "" && strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("core: database.dsn is required when database.driver is set")
	}
	for key := range c.Platforms {
		if _, err := ParsePlatform(key); err != nil {
			return fmt.Errorf("core: platforms: %w", err)
		}
	}
	return nil
}

// OAuth returns the settings for platform. Meta platforms inherit the shared
// Meta app id and secret when no platform-specific client is configured.
func (c Config) OAuth(platform Platform) OAuthSettings {
	settings := c.Platforms[string(platform)]
	if platform.IsMeta() {
		if strings.TrimSpace(settings.ClientID) == "" {
			settings.ClientID = c.Meta.AppID
		}
		if strings.TrimSpace(settings.ClientSecret) == "" {
			settings.ClientSecret = c.Meta.AppSecret
		}
	}
	settings.ClientID = strings.TrimSpace(settings.ClientID)
	settings.ClientSecret = strings.TrimSpace(settings.ClientSecret)
	settings.RedirectURI = strings.TrimSpace(settings.RedirectURI)
	settings.AuthURL = strings.TrimSpace(settings.AuthURL)
	settings.TokenURL = strings.TrimSpace(settings.TokenURL)
	settings.Scopes = append([]string(nil), settings.Scopes...)
	return settings
}

func (c Config) GraphAPIVersion() string {
	version := strings.TrimSpace(c.Meta.GraphAPIVersion)
	if version == "" {
		return DefaultGraphAPIVersion
	}
	return version
}
