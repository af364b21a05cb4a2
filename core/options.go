package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// EnvConfigLoader reads the master secret, Meta app settings and per-platform
// OAuth settings from environment variables:
//
//	ENCRYPTION_MASTER_SECRET
//	DATABASE_DRIVER, DATABASE_URL
//	META_APP_ID, META_APP_SECRET, META_GRAPH_API_VERSION
//	<PLATFORM>_CLIENT_ID, _CLIENT_SECRET, _REDIRECT_URI, _SCOPES, _AUTH_URL, _TOKEN_URL
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() *EnvConfigLoader {
	return &EnvConfigLoader{Lookup: os.LookupEnv}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := os.LookupEnv
	if l != nil && l.Lookup != nil {
		lookup = l.Lookup
	}
	get := func(key string) string {
		value, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(value)
	}

	raw := map[string]any{}
	if secret := get("ENCRYPTION_MASTER_SECRET"); secret != "" {
		raw["master_secret"] = secret
	}
	database := map[string]any{}
	if value := get("DATABASE_DRIVER"); value != "" {
		database["driver"] = strings.ToLower(value)
	}
	if value := get("DATABASE_URL"); value != "" {
		database["dsn"] = value
	}
	if len(database) > 0 {
		raw["database"] = database
	}
	meta := map[string]any{}
	if value := get("META_APP_ID"); value != "" {
		meta["app_id"] = value
	}
	if value := get("META_APP_SECRET"); value != "" {
		meta["app_secret"] = value
	}
	if value := get("META_GRAPH_API_VERSION"); value != "" {
		meta["graph_api_version"] = value
	}
	if len(meta) > 0 {
		raw["meta"] = meta
	}

	platforms := map[string]any{}
	for _, platform := range Platforms() {
		prefix := strings.ToUpper(string(platform)) + "_"
		entry := map[string]any{}
		for _, field := range []string{"client_id", "client_secret", "redirect_uri", "auth_url", "token_url"} {
			if value := get(prefix + strings.ToUpper(field)); value != "" {
				entry[field] = value
			}
		}
		if scopes := splitScopes(get(prefix + "SCOPES")); len(scopes) > 0 {
			entry["scopes"] = scopes
		}
		if len(entry) > 0 {
			platforms[string(platform)] = entry
		}
	}
	if len(platforms) > 0 {
		raw["platforms"] = platforms
	}
	return raw, nil
}

func splitScopes(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig resolves defaults, provider-loaded values and runtime overrides,
// in increasing precedence.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.MasterSecret) != "" {
		layer["master_secret"] = cfg.MasterSecret
	}

	meta := map[string]any{}
	if includeZero || cfg.Meta.AppID != "" {
		meta["app_id"] = cfg.Meta.AppID
	}
	if includeZero || cfg.Meta.AppSecret != "" {
		meta["app_secret"] = cfg.Meta.AppSecret
	}
	if includeZero || cfg.Meta.GraphAPIVersion != "" {
		meta["graph_api_version"] = cfg.Meta.GraphAPIVersion
	}
	if len(meta) > 0 {
		layer["meta"] = meta
	}
	if includeZero || cfg.Database.Driver != "" || cfg.Database.DSN != "" || cfg.Database.Debug {
		layer["database"] = map[string]any{
			"driver": cfg.Database.Driver,
			"dsn":    cfg.Database.DSN,
			"debug":  cfg.Database.Debug,
		}
	}
	if includeZero || cfg.Publish.Parallelism > 0 {
		layer["publish"] = map[string]any{"parallelism": cfg.Publish.Parallelism}
	}

	if includeZero || len(cfg.Platforms) > 0 {
		platforms := make(map[string]any, len(cfg.Platforms))
		for key, settings := range cfg.Platforms {
			platforms[key] = map[string]any{
				"client_id":     settings.ClientID,
				"client_secret": settings.ClientSecret,
				"redirect_uri":  settings.RedirectURI,
				"scopes":        append([]string(nil), settings.Scopes...),
				"auth_url":      settings.AuthURL,
				"token_url":     settings.TokenURL,
			}
		}
		layer["platforms"] = platforms
	}
	return layer
}
