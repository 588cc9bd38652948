package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Config is assembled from an optional JSON file plus environment
// variables; the environment wins on every field it sets.
type Config struct {
	Addr       string `json:"addr"`
	BaseURL    string `json:"baseUrl"`
	CacheDSN   string `json:"cacheDsn"`
	Timezone   string `json:"timezone"`
	CalendarID string `json:"calendarId"`

	// DocumentsDir enables the local folder mirror when non-empty.
	DocumentsDir string `json:"documentsDir"`

	MaterializeCron string `json:"materializeCron"`
	AnchorSyncCron  string `json:"anchorSyncCron"`

	OAuthClientID     string `json:"oauthClientId"`
	OAuthClientSecret string `json:"oauthClientSecret"`
}

const schemaText = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"addr":              {"type": "string"},
		"baseUrl":           {"type": "string", "format": "uri"},
		"cacheDsn":          {"type": "string"},
		"timezone":          {"type": "string"},
		"calendarId":        {"type": "string"},
		"documentsDir":      {"type": "string"},
		"materializeCron":   {"type": "string"},
		"anchorSyncCron":    {"type": "string"},
		"oauthClientId":     {"type": "string"},
		"oauthClientSecret": {"type": "string"}
	}
}`

// Load reads LIFEOPS_CONFIG_FILE if set, validates it against the embedded
// schema, then applies LIFEOPS_* environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            ":8080",
		BaseURL:         "http://localhost:8080",
		Timezone:        "Local",
		CalendarID:      "primary",
		MaterializeCron: "5 0 * * *",
		AnchorSyncCron:  "*/30 * * * *",
	}

	if path := strings.TrimSpace(os.Getenv("LIFEOPS_CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.OAuthClientID == "" || cfg.OAuthClientSecret == "" {
		return nil, errors.New("LIFEOPS_OAUTH_CLIENT_ID and LIFEOPS_OAUTH_CLIENT_SECRET are required")
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := ValidateConfigJSON(data); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return json.Unmarshal(data, c)
}

// ValidateConfigJSON checks a raw config document against the embedded
// schema without applying it.
func ValidateConfigJSON(data []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaText))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(instance)
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "LIFEOPS_ADDR")
	setString(&c.BaseURL, "LIFEOPS_BASE_URL")
	setString(&c.CacheDSN, "LIFEOPS_CACHE_DSN")
	setString(&c.Timezone, "LIFEOPS_TIMEZONE")
	setString(&c.CalendarID, "LIFEOPS_CALENDAR_ID")
	setString(&c.DocumentsDir, "LIFEOPS_DOCUMENTS_DIR")
	setString(&c.MaterializeCron, "LIFEOPS_MATERIALIZE_CRON")
	setString(&c.AnchorSyncCron, "LIFEOPS_ANCHOR_SYNC_CRON")
	setString(&c.OAuthClientID, "LIFEOPS_OAUTH_CLIENT_ID")
	setString(&c.OAuthClientSecret, "LIFEOPS_OAUTH_CLIENT_SECRET")
}

func setString(dst *string, name string) {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		*dst = value
	}
}

// RedirectURL is the OAuth callback endpoint under the public base URL.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/callback"
}

// SecureCookies reports whether the public base URL is served over TLS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}
