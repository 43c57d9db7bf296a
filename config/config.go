package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModelID  = "teeth_annotation_sl_techno/1"
	DefaultHTTPPort = 8111
	DefaultAdhoc    = 50053
	DefaultBaseURL  = "http://localhost:9001"
)

type Config struct {
	HTTPPort         int      `yaml:"HTTPPort"`
	AdhocPort        int      `yaml:"AdhocPort"`
	Debug            bool     `yaml:"debug"`
	ModelID          string   `yaml:"modelId"`
	InferenceBackend string   `yaml:"InferenceBackend"`
	BaseURL          string   `yaml:"baseURL"`
	APIKey           string   `yaml:"apiKey"`
	Names            []string `yaml:"names"`
	NamesFile        string   `yaml:"namesFile"`
	InputSize        int      `yaml:"inputSize"`
	Iou              float32  `yaml:"iou"`
	AWSRegion        string   `yaml:"awsRegion"`
	UseRegServer     bool     `yaml:"UseRegServer"`
	RegServerPort    int      `yaml:"RegServerPort"`
	RegServerHost    string   `yaml:"RegServerHost"`
}

func Default() Config {
	return Config{
		HTTPPort:         DefaultHTTPPort,
		AdhocPort:        DefaultAdhoc,
		ModelID:          DefaultModelID,
		InferenceBackend: "roboflow",
		BaseURL:          DefaultBaseURL,
		InputSize:        640,
		Iou:              0.45,
	}
}

// Load reads the yaml file at path (a missing file keeps the defaults), then
// applies .env and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrideString(&c.ModelID, "MODEL_ID")
	overrideString(&c.InferenceBackend, "INFERENCE_BACKEND")
	overrideString(&c.BaseURL, "INFERENCE_BASE_URL")
	overrideString(&c.APIKey, "ROBOFLOW_API_KEY")
	overrideString(&c.AWSRegion, "AWS_REGION")
	if v, ok := os.LookupEnv("HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.HTTPPort = port
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.HTTPPort <= 0 {
		c.HTTPPort = def.HTTPPort
	}
	if c.AdhocPort <= 0 {
		c.AdhocPort = def.AdhocPort
	}
	if c.ModelID == "" {
		c.ModelID = def.ModelID
	}
	if c.InferenceBackend == "" {
		c.InferenceBackend = def.InferenceBackend
	}
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.InputSize <= 0 {
		c.InputSize = def.InputSize
	}
	if c.Iou <= 0 || c.Iou > 1 {
		c.Iou = def.Iou
	}
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
