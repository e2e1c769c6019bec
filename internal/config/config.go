package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config collects the settings shared by the server and the CLI.
type Config struct {
	Port           string        `yaml:"port"`
	UploadDir      string        `yaml:"upload_dir"`
	CaptureDir     string        `yaml:"capture_dir"`
	PublicURL      string        `yaml:"public_url"`
	APIURL         string        `yaml:"api_url"`
	RemoveBGAPIKey string        `yaml:"remove_bg_api_key"`
	RemoveBGURL    string        `yaml:"remove_bg_url"`
	ScanProvider   string        `yaml:"scan_provider"`
	ScanModel      string        `yaml:"scan_model"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
}

func Default() Config {
	return Config{
		Port:         "3000",
		UploadDir:    "uploads/products",
		CaptureDir:   "uploads/captures",
		APIURL:       "http://localhost:3000",
		RemoveBGURL:  "https://api.remove.bg/v1.0/removebg",
		ScanProvider: "gemini",
		HTTPTimeout:  60 * time.Second,
	}
}

// Load starts from the defaults, applies environment variables and then the
// YAML file at path, if one is given.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.UploadDir, "UPLOAD_DIR")
	setString(&c.CaptureDir, "CAPTURE_DIR")
	setString(&c.PublicURL, "PUBLIC_URL")
	setString(&c.APIURL, "API_URL")
	setString(&c.RemoveBGAPIKey, "REMOVE_BG_API_KEY")
	setString(&c.RemoveBGURL, "REMOVE_BG_URL")
	setString(&c.ScanProvider, "SCAN_PROVIDER")
	setString(&c.ScanModel, "SCAN_MODEL")

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		c.HTTPTimeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
