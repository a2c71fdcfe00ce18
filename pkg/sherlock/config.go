package sherlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/flintlabsai/sherlock-go/pkg/keys"
)

// Config is the resolved client configuration.
type Config struct {
	// APIURL is the registrar base URL.
	APIURL string
	// KeyFile is where the identity key lives on disk.
	KeyFile string
}

// LoadConfig resolves configuration from, in order of precedence:
// environment variables (SHERLOCK_API_URL, SHERLOCK_KEY_FILE), a YAML
// config file ($SHERLOCK_CONFIG, or ~/.sherlock/config.yaml), and
// built-in defaults. A missing config file is not an error.
func LoadConfig() (Config, error) {
	v := viper.New()
	if cfgFile := os.Getenv("SHERLOCK_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".sherlock"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("sherlock")
	v.AutomaticEnv()

	v.SetDefault("api_url", DefaultBaseURL)
	home, _ := os.UserHomeDir()
	v.SetDefault("key_file", filepath.Join(home, ".sherlock", "key"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return Config{
		APIURL:  v.GetString("api_url"),
		KeyFile: v.GetString("key_file"),
	}, nil
}

// NewFromConfig builds a client from LoadConfig, loading the identity
// key from the configured file and generating one on first use.
func NewFromConfig(opts ...Option) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	key, err := keys.LoadOrGenerate(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load identity key: %w", err)
	}
	return New(key, append([]Option{WithBaseURL(cfg.APIURL)}, opts...)...)
}
