package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/goran-ethernal/ChainHound/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envRefPattern matches a whole value of the form $NAME or ${NAME}.
var envRefPattern = regexp.MustCompile(`^\$(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))$`)

// LoadFromFile loads configuration from a file, auto-detecting the format by extension.
// Supported formats: .yaml, .yml, .json, .toml
// A .env file next to the configuration is loaded into the environment first.
func LoadFromFile(path string) (*pkgconfig.Config, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var load func(string) (*pkgconfig.Config, error)
	switch ext {
	case ".yaml", ".yml":
		load = LoadFromYAML
	case ".json":
		load = LoadFromJSON
	case ".toml":
		load = LoadFromTOML
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	return load(path)
}

// LoadFromYAML loads configuration from a YAML file.
func LoadFromYAML(path string) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return processConfig(&cfg)
}

// LoadFromJSON loads configuration from a JSON file.
func LoadFromJSON(path string) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	return processConfig(&cfg)
}

// LoadFromTOML loads configuration from a TOML file.
func LoadFromTOML(path string) (*pkgconfig.Config, error) {
	var cfg pkgconfig.Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	return processConfig(&cfg)
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:              "json",
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&pkgconfig.Config{})
	schema.Title = "ChainHound configuration"

	return json.MarshalIndent(schema, "", "  ")
}

// processConfig resolves environment references, applies defaults and validates the configuration.
func processConfig(cfg *pkgconfig.Config) (*pkgconfig.Config, error) {
	if err := resolveEnv(cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	return nil
}

// resolveEnv replaces $NAME and ${NAME} values of RPC URLs and the database path.
func resolveEnv(cfg *pkgconfig.Config) error {
	for name, network := range cfg.Networks {
		url, err := expandEnvRef(network.RPCURL)
		if err != nil {
			return fmt.Errorf("networks[%s].rpc_url: %w", name, err)
		}
		network.RPCURL = url
		cfg.Networks[name] = network
	}

	if cfg.Database != nil {
		path, err := expandEnvRef(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
		cfg.Database.Path = path
	}

	return nil
}

func expandEnvRef(value string) (string, error) {
	match := envRefPattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return value, nil
	}

	name := match[1]
	if name == "" {
		name = match[2]
	}

	resolved, ok := os.LookupEnv(name)
	if !ok || resolved == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}

	return resolved, nil
}
