package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/strkey"
)

const (
	configDirPathEnv     = "MATCHNODE_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
	networksFileName     = "network.yaml"
	rpcURLEnvSuffix      = "_LEDGER_RPC"
)

var (
	networkNameRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
	contractIDRegex  = regexp.MustCompile(`^C[A-Z2-7]{55}$`)
)

// EnvConfig holds the settings read from the environment.
type EnvConfig struct {
	Network       string        `env:"MATCHNODE_NETWORK" env-default:"testnet"`
	SourceAccount string        `env:"MATCHNODE_SOURCE_ACCOUNT"`
	SignerSeed    string        `env:"MATCHNODE_SIGNER_SEED"`
	PollInterval  time.Duration `env:"MATCHNODE_POLL_INTERVAL" env-default:"10s"`
	FeedAddr      string        `env:"MATCHNODE_FEED_ADDR" env-default:":8080"`
	MetricsAddr   string        `env:"MATCHNODE_METRICS_ADDR" env-default:":4242"`
	Log           log.Config
}

// NetworksConfig is the content of network.yaml.
type NetworksConfig struct {
	Networks []NetworkConfig `yaml:"networks"`
}

// NetworkConfig describes one ledger network and the contracts deployed on it.
type NetworkConfig struct {
	// Name is a snake_case identifier. The RPC URL is read from
	// <NAME>_LEDGER_RPC, e.g. TESTNET_LEDGER_RPC.
	Name string `yaml:"name" validate:"required"`
	// Passphrase identifies the network in signatures.
	Passphrase string `yaml:"passphrase" validate:"required"`
	// ContractID is the GeoTrust match contract.
	ContractID string `yaml:"contract_id" validate:"required,contract_id"`
	// VerifierID is the location proof verifier, informational only.
	VerifierID string `yaml:"verifier_id" validate:"omitempty,contract_id"`
	// GameHubID is the game hub contract, informational only.
	GameHubID string `yaml:"game_hub_id" validate:"omitempty,contract_id"`
	// Disabled networks are skipped.
	Disabled bool `yaml:"disabled"`
}

// Config is the complete configuration of a matchnode process.
type Config struct {
	Env     EnvConfig
	Network NetworkConfig
	RPCURL  string
}

func getValidator() *validator.Validate {
	validate := validator.New()

	if err := validate.RegisterValidation("contract_id", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return contractIDRegex.MatchString(id) && strkey.IsValid(strkey.ClassContract, id)
	}); err != nil {
		panic(fmt.Sprintf("failed to register contract_id validation: %v", err))
	}
	return validate
}

// LoadConfig builds the configuration from <config dir>/.env, the
// environment and <config dir>/network.yaml.
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found")
	}

	var env EnvConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	if env.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid MATCHNODE_POLL_INTERVAL '%s'", env.PollInterval)
	}

	networks, err := LoadNetworks(configDirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load networks: %w", err)
	}
	network, ok := networks.Get(env.Network)
	if !ok {
		return nil, fmt.Errorf("network '%s' is not configured in %s", env.Network, networksFileName)
	}

	rpcEnv := RPCURLEnv(network.Name)
	rpcURL := os.Getenv(rpcEnv)
	if rpcURL == "" {
		return nil, fmt.Errorf("%s environment variable is required", rpcEnv)
	}

	if env.SourceAccount != "" && !strkey.IsValid(strkey.ClassAccount, env.SourceAccount) {
		return nil, fmt.Errorf("invalid MATCHNODE_SOURCE_ACCOUNT '%s'", env.SourceAccount)
	}

	logger.Info("configuration loaded", "network", network.Name, "contract", network.ContractID, "pollInterval", env.PollInterval)
	return &Config{Env: env, Network: network, RPCURL: rpcURL}, nil
}

// RPCURLEnv returns the environment variable holding the RPC URL of network.
func RPCURLEnv(network string) string {
	return strings.ToUpper(network) + rpcURLEnvSuffix
}

// LoadNetworks reads and validates <configDirPath>/network.yaml.
func LoadNetworks(configDirPath string) (NetworksConfig, error) {
	f, err := os.Open(filepath.Join(configDirPath, networksFileName))
	if err != nil {
		return NetworksConfig{}, err
	}
	defer f.Close()

	var cfg NetworksConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return NetworksConfig{}, err
	}
	if err := cfg.verifyVariables(); err != nil {
		return NetworksConfig{}, err
	}
	return cfg, nil
}

// verifyVariables checks every enabled network and reports all problems at once.
func (cfg NetworksConfig) verifyVariables() error {
	validate := getValidator()
	seen := make(map[string]bool)

	var errs error
	for i, network := range cfg.Networks {
		if network.Disabled {
			continue
		}
		if !networkNameRegex.MatchString(network.Name) {
			errs = multierr.Append(errs, fmt.Errorf("invalid network name '%s', should match snake_case format", network.Name))
			continue
		}
		if seen[network.Name] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate network name '%s'", network.Name))
			continue
		}
		seen[network.Name] = true

		if err := validate.Struct(network); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("network[%d] %s: %w", i, network.Name, err))
		}
	}
	return errs
}

// Get returns the enabled network called name.
func (cfg NetworksConfig) Get(name string) (NetworkConfig, bool) {
	for _, network := range cfg.Networks {
		if !network.Disabled && network.Name == name {
			return network, true
		}
	}
	return NetworkConfig{}, false
}
