package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

type Mode string

const (
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

const (
	configDirPathEnv     = "CLAIMSIGNER_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

var errMissingPrivateKey = errors.New("SIGNER_PRIVATE_KEY environment variable is required in production mode")

// SignerConfig describes the signing key and the digests it accepts.
// PrivateKey may be empty in test mode, in which case an ephemeral key is generated.
type SignerConfig struct {
	PrivateKey   string `env:"SIGNER_PRIVATE_KEY"`
	DigestLength int    `env:"SIGNER_DIGEST_LENGTH" env-default:"32" validate:"oneof=16 32"`
	Network      string `env:"SIGNER_NETWORK" env-default:"testnet" validate:"oneof=mainnet testnet devnet"`
}

// Config represents the overall application configuration
type Config struct {
	Mode        Mode   `env:"CLAIMSIGNER_MODE" env-default:"production" validate:"oneof=production test"`
	RPCAddr     string `env:"CLAIMSIGNER_RPC_ADDR" env-default:":8000" validate:"required"`
	MetricsAddr string `env:"CLAIMSIGNER_METRICS_ADDR" env-default:":4242" validate:"required"`

	Signer SignerConfig
	Log    log.Config
	DB     DatabaseConfig
}

// LoadConfig reads the .env file from CLAIMSIGNER_CONFIG_DIR_PATH, if any, and
// then builds the configuration from environment variables.
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found", "path", configDotEnvPath)
	}

	var conf Config
	if err := cleanenv.ReadEnv(&conf); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	// A connection URL takes precedence over the individual database settings.
	if conf.DB.URL != "" {
		dbConf, err := ParseConnectionString(conf.DB.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
		conf.DB = dbConf
	}

	if err := validator.New().Struct(&conf); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if conf.Signer.PrivateKey == "" && conf.Mode != ModeTest {
		return nil, errMissingPrivateKey
	}

	logger.Info("configuration loaded",
		"mode", conf.Mode,
		"digestLength", conf.Signer.DigestLength,
		"network", conf.Signer.Network,
		"dbDriver", conf.DB.Driver)
	return &conf, nil
}

// NetworkValue returns the parsed default claim network.
func (c SignerConfig) NetworkValue() claim.Network {
	network, err := claim.ParseNetwork(c.Network)
	if err != nil {
		return claim.NetworkTestnet
	}
	return network
}

// NewSigner creates the service signer. Without a configured key a fresh one
// is generated, which LoadConfig only permits in test mode.
func (c SignerConfig) NewSigner() (*sign.EthereumSigner, error) {
	opt := sign.WithDigestLength(c.DigestLength)
	if c.PrivateKey == "" {
		return sign.GenerateEthereumSigner(opt)
	}
	return sign.NewEthereumSignerFromHex(c.PrivateKey, opt)
}
