package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dberrors "github.com/systmms/dbsts/internal/errors"
	"github.com/systmms/dbsts/internal/logging"
)

// Retention policies for expired audit records.
const (
	RetentionExpire = "expire" // keep the row, flip status to expired
	RetentionDelete = "delete" // remove the row
)

// Config holds the runtime configuration shared across commands.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the sts.yaml structure.
type Definition struct {
	JWT         JWTConfig         `yaml:"jwt,omitempty" json:"jwt,omitempty"`
	Client      ClientConfig      `yaml:"client,omitempty" json:"client,omitempty"`
	Credentials CredentialsConfig `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Adapter     AdapterConfig     `yaml:"adapter" json:"adapter"`
	Audit       DatasourceConfig  `yaml:"audit" json:"audit"`
	Sweep       SweepConfig       `yaml:"sweep,omitempty" json:"sweep,omitempty"`
	Server      ServerConfig      `yaml:"server,omitempty" json:"server,omitempty"`
}

// JWTConfig configures verification of inbound bearer assertions. When
// Issuer is empty the token exchange path is disabled and only direct
// identity substitution is accepted.
type JWTConfig struct {
	Issuer    string `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Audience  string `yaml:"audience,omitempty" json:"audience,omitempty"`
	Claim     string `yaml:"claim,omitempty" json:"claim,omitempty"`
	Secret    string `yaml:"secret,omitempty" json:"secret,omitempty"`
	PublicKey string `yaml:"public-key,omitempty" json:"public-key,omitempty"`
}

// ClientConfig configures inbound client authentication. When both
// fields are empty the exchange endpoint accepts anonymous callers.
type ClientConfig struct {
	ClientID     string `yaml:"client-id,omitempty" json:"client-id,omitempty"`
	ClientSecret string `yaml:"client-secret,omitempty" json:"client-secret,omitempty"`
}

// CredentialsConfig controls generated credential material and lifetime.
type CredentialsConfig struct {
	Duration       int      `yaml:"duration,omitempty" json:"duration,omitempty"`
	UsernameLength int      `yaml:"username-length,omitempty" json:"username-length,omitempty"`
	PasswordLength int      `yaml:"password-length,omitempty" json:"password-length,omitempty"`
	Roles          []string `yaml:"roles,omitempty" json:"roles,omitempty"`
	Retention      string   `yaml:"retention,omitempty" json:"retention,omitempty"`
}

// AdapterConfig describes the backend data store credentials are
// materialized on.
type AdapterConfig struct {
	Platform string `yaml:"platform" json:"platform"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty" json:"sslmode,omitempty"`
}

// DatasourceConfig describes the service datasource holding the audit
// ledger.
type DatasourceConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty" json:"sslmode,omitempty"`
}

// DSN renders the datasource as a lib/pq connection string.
func (d DatasourceConfig) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", d.Host),
		fmt.Sprintf("dbname=%s", d.Database),
		fmt.Sprintf("user=%s", d.Username),
	}
	if d.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", d.Port))
	}
	if d.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", d.Password))
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", d.SSLMode))
	return strings.Join(parts, " ")
}

// SweepConfig controls the expiry reconciliation loop. Values are
// seconds.
type SweepConfig struct {
	Interval     int `yaml:"interval,omitempty" json:"interval,omitempty"`
	InitialDelay int `yaml:"initial-delay,omitempty" json:"initial-delay,omitempty"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

const (
	defaultDuration       = 3600
	minDuration           = 120
	defaultKeyLength      = 12
	defaultClaim          = "roles"
	defaultSweepInterval  = 180
	defaultInitialDelay   = 10
	defaultServerAddr     = ":8080"
	defaultSSLMode        = "require"
	defaultPostgresPort   = 5432
)

// Load reads and parses the sts.yaml file.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", c.Path, err)
	}

	if err := validateSchema(data); err != nil {
		return err
	}

	def := &Definition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", c.Path, err)
	}

	def.applyDefaults()
	if err := def.validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

// validateSchema checks the raw document against the embedded JSON
// schema before decoding into typed structs.
func validateSchema(data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	return nil
}

func (d *Definition) applyDefaults() {
	// Durations below the floor keep the default rather than erroring.
	if d.Credentials.Duration < minDuration {
		d.Credentials.Duration = defaultDuration
	}
	if d.Credentials.UsernameLength <= 1 {
		d.Credentials.UsernameLength = defaultKeyLength
	}
	if d.Credentials.PasswordLength <= 1 {
		d.Credentials.PasswordLength = defaultKeyLength
	}
	if d.Credentials.Retention == "" {
		d.Credentials.Retention = RetentionExpire
	}
	if d.JWT.Claim == "" {
		d.JWT.Claim = defaultClaim
	}
	if d.Sweep.Interval <= 0 {
		d.Sweep.Interval = defaultSweepInterval
	}
	if d.Sweep.InitialDelay < 0 {
		d.Sweep.InitialDelay = defaultInitialDelay
	}
	if d.Server.Addr == "" {
		d.Server.Addr = defaultServerAddr
	}
	if d.Adapter.SSLMode == "" {
		d.Adapter.SSLMode = defaultSSLMode
	}
	if d.Audit.SSLMode == "" {
		d.Audit.SSLMode = defaultSSLMode
	}
	if d.Audit.Port == 0 {
		d.Audit.Port = defaultPostgresPort
	}
}

func (d *Definition) validate() error {
	if d.Credentials.Retention != RetentionExpire && d.Credentials.Retention != RetentionDelete {
		return dberrors.ConfigurationError{
			Field:   "credentials.retention",
			Value:   d.Credentials.Retention,
			Message: "must be 'expire' or 'delete'",
		}
	}
	if d.Adapter.Platform == "" {
		return dberrors.ConfigurationError{
			Field:   "adapter.platform",
			Message: "target platform is required",
		}
	}
	if (d.Client.ClientID == "") != (d.Client.ClientSecret == "") {
		return dberrors.ConfigurationError{
			Field:   "client",
			Message: "client-id and client-secret must be set together",
		}
	}
	return nil
}
