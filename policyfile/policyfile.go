/*
Package policyfile loads the configuration of a CORS middleware from a
policy file (YAML, JSON, or TOML) or from an already-parsed settings map.

A policy file looks like this:

	allowed_origins:
	  - https://subdomain.example.com
	  - https://www.example.com
	allowed_methods: GET,HEAD,PUT,PATCH,POST,DELETE
	allowed_headers: [Content-Type, Authorization]
	max_age_seconds: 600

List-valued keys accept either a list or a comma-separated string.
Every key can be overridden by an environment variable whose name is the
key's, uppercased and prefixed with CORS_ (e.g. CORS_DENIAL_STATUS=500).
Unknown keys are rejected.

Loading a policy only decodes it; the resulting [corsguard.Config] is
validated by [corsguard.NewMiddleware] or [corsguard.Middleware.Reconfigure].
*/
package policyfile

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/jub0bs/corsguard"
	"github.com/jub0bs/corsguard/internal/headers"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the names of the environment variables that override
// the keys of a policy file.
const EnvPrefix = "CORS"

// Settings mirrors the keys of a policy file.
type Settings struct {
	AllowedOrigins                     []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	AllowedMethods                     []string `mapstructure:"allowed_methods" yaml:"allowed_methods,omitempty"`
	AllowedHeaders                     []string `mapstructure:"allowed_headers" yaml:"allowed_headers,omitempty"`
	ExposedHeaders                     []string `mapstructure:"exposed_headers" yaml:"exposed_headers,omitempty"`
	Credentialed                       bool     `mapstructure:"credentialed" yaml:"credentialed,omitempty"`
	MaxAgeSeconds                      int      `mapstructure:"max_age_seconds" yaml:"max_age_seconds,omitempty"`
	PreflightSuccessStatus             int      `mapstructure:"preflight_success_status" yaml:"preflight_success_status,omitempty"`
	DenialStatus                       int      `mapstructure:"denial_status" yaml:"denial_status,omitempty"`
	ValidateRequestHeaders             bool     `mapstructure:"validate_request_headers" yaml:"validate_request_headers,omitempty"`
	DangerouslyTolerateInsecureOrigins bool     `mapstructure:"dangerously_tolerate_insecure_origins" yaml:"dangerously_tolerate_insecure_origins,omitempty"`
	DangerouslyTolerateEffectiveTLDs   bool     `mapstructure:"dangerously_tolerate_effective_tlds" yaml:"dangerously_tolerate_effective_tlds,omitempty"`
}

// Keys returns the keys that a policy file may contain.
func Keys() []string {
	typ := reflect.TypeFor[Settings]()
	keys := make([]string, 0, typ.NumField())
	for i := range typ.NumField() {
		keys = append(keys, typ.Field(i).Tag.Get("mapstructure"))
	}
	return keys
}

// Config returns the middleware configuration that s describes.
func (s *Settings) Config() corsguard.Config {
	return corsguard.Config{
		Origins:                            s.AllowedOrigins,
		Credentialed:                       s.Credentialed,
		Methods:                            s.AllowedMethods,
		RequestHeaders:                     s.AllowedHeaders,
		ValidateRequestHeaders:             s.ValidateRequestHeaders,
		MaxAgeInSeconds:                    s.MaxAgeSeconds,
		ResponseHeaders:                    s.ExposedHeaders,
		PreflightSuccessStatus:             s.PreflightSuccessStatus,
		DenialStatus:                       s.DenialStatus,
		DangerouslyTolerateInsecureOrigins: s.DangerouslyTolerateInsecureOrigins,
		DangerouslyTolerateEffectiveTLDs:   s.DangerouslyTolerateEffectiveTLDs,
	}
}

// SettingsOf returns the Settings that describe cfg.
func SettingsOf(cfg *corsguard.Config) *Settings {
	return &Settings{
		AllowedOrigins:                     cfg.Origins,
		AllowedMethods:                     cfg.Methods,
		AllowedHeaders:                     cfg.RequestHeaders,
		ExposedHeaders:                     cfg.ResponseHeaders,
		Credentialed:                       cfg.Credentialed,
		MaxAgeSeconds:                      cfg.MaxAgeInSeconds,
		PreflightSuccessStatus:             cfg.PreflightSuccessStatus,
		DenialStatus:                       cfg.DenialStatus,
		ValidateRequestHeaders:             cfg.ValidateRequestHeaders,
		DangerouslyTolerateInsecureOrigins: cfg.DangerouslyTolerateInsecureOrigins,
		DangerouslyTolerateEffectiveTLDs:   cfg.DangerouslyTolerateEffectiveTLDs,
	}
}

// Encode renders cfg as a YAML policy file that [Load] accepts.
// Keys whose value is the zero value are omitted.
// cfg's error handler, if any, cannot be represented and is ignored.
func Encode(cfg *corsguard.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(SettingsOf(cfg)); err != nil {
		return nil, fmt.Errorf("policyfile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("policyfile: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads the policy file at path, applies the CORS_* environment
// overrides, and returns the resulting configuration.
// The file's format is inferred from its extension.
func Load(path string) (corsguard.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys that viper already knows of.
	for _, key := range Keys() {
		if err := v.BindEnv(key); err != nil {
			return corsguard.Config{}, fmt.Errorf("policyfile: failed to bind %s: %w", key, err)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return corsguard.Config{}, fmt.Errorf("policyfile: error reading %s: %w", path, err)
	}
	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return corsguard.Config{}, fmt.Errorf("policyfile: invalid policy %s: %w", path, err)
	}
	return cfg, nil
}

// Decode decodes settings (e.g. the settings of a gateway plugin) into a
// middleware configuration.
func Decode(settings map[string]any) (corsguard.Config, error) {
	s, err := DecodeSettings(settings)
	if err != nil {
		return corsguard.Config{}, err
	}
	return s.Config(), nil
}

// DecodeSettings decodes settings into a Settings value.
// Scalars are weakly typed: "true" decodes into a bool and "600" into an
// int, so that values sourced from environment variables are accepted.
func DecodeSettings(settings map[string]any) (*Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(commaSeparatedList),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

var stringSliceType = reflect.TypeFor[[]string]()

// commaSeparatedList decodes a string such as "GET, HEAD,PUT" into a slice
// of its trimmed, non-empty elements.
func commaSeparatedList(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != stringSliceType {
		return data, nil
	}
	return headers.SplitList(reflect.ValueOf(data).String()), nil
}
