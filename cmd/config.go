package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-sffs/sffs/pkg/crypto"
)

// KeysConfig holds key material configuration
type KeysConfig struct {
	HmacKeyPath      string `mapstructure:"hmac_key_path"`
	AesKeyPath       string `mapstructure:"aes_key_path"`
	Passphrase       string `mapstructure:"passphrase"`
	PassphraseSalt   string `mapstructure:"passphrase_salt"`
	DeriveIterations int    `mapstructure:"derive_iterations"`
}

// LoadKeysConfig loads key configuration using Viper
func LoadKeysConfig() (*KeysConfig, error) {
	viper.SetConfigName("sffs-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.sffs")

	viper.SetDefault("hmac_key_path", "")
	viper.SetDefault("aes_key_path", "")
	viper.SetDefault("passphrase", "")
	viper.SetDefault("passphrase_salt", "sffs")
	viper.SetDefault("derive_iterations", crypto.DefaultDeriveIterations)

	// Allow environment variables (SFFS_PASSPHRASE etc.)
	viper.SetEnvPrefix("SFFS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config KeysConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// loadKeyBundle resolves the key bundle from key files when configured, or
// derives one from the passphrase.
func loadKeyBundle(config *KeysConfig) (crypto.KeyBundle, error) {
	if config.HmacKeyPath != "" && config.AesKeyPath != "" {
		hmacKey, err := readKeyFile(config.HmacKeyPath, crypto.HmacKeySize)
		if err != nil {
			return crypto.KeyBundle{}, err
		}
		aesKey, err := readKeyFile(config.AesKeyPath, crypto.AesKeySize)
		if err != nil {
			return crypto.KeyBundle{}, err
		}
		return crypto.NewKeyBundle(hmacKey, aesKey)
	}

	if config.Passphrase == "" {
		return crypto.KeyBundle{}, fmt.Errorf("no key material: set hmac_key_path/aes_key_path or a passphrase")
	}
	bundle := crypto.DeriveKeyBundle([]byte(config.Passphrase), []byte(config.PassphraseSalt),
		config.DeriveIterations)
	return bundle, nil
}

// readKeyFile reads a key stored either raw or hex-encoded.
func readKeyFile(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	if len(data) == size {
		return data, nil
	}
	decoded, err := hex.DecodeString(string(trimWhitespace(data)))
	if err == nil && len(decoded) == size {
		return decoded, nil
	}
	return nil, fmt.Errorf("key file %s must hold %d raw or hex-encoded bytes", path, size)
}

func trimWhitespace(data []byte) []byte {
	start, end := 0, len(data)
	for start < end && (data[start] == ' ' || data[start] == '\n' || data[start] == '\r' || data[start] == '\t') {
		start++
	}
	for end > start && (data[end-1] == ' ' || data[end-1] == '\n' || data[end-1] == '\r' || data[end-1] == '\t') {
		end--
	}
	return data[start:end]
}
