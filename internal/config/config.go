package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models essaybid.yml: the marketplace settings an admin can tune
// without touching code. The authoritative copy lives in the database; the
// file form exists for import/export.
type Config struct {
	Marketplace struct {
		Name   string `yaml:"name" json:"name"`
		Locale string `yaml:"locale" json:"locale"`
	} `yaml:"marketplace" json:"marketplace"`
	Catalog struct {
		FieldsOfStudy      []string `yaml:"fields_of_study" json:"fields_of_study"`
		QuestionCategories []string `yaml:"question_categories" json:"question_categories"`
	} `yaml:"catalog" json:"catalog"`
	Chat struct {
		// Moderated gates receiver visibility behind admin approval.
		// Turning it off auto-approves new messages; it never reveals
		// messages sent while moderation was on.
		Moderated bool `yaml:"moderated" json:"moderated"`
	} `yaml:"chat" json:"chat"`
	Notifications struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
	} `yaml:"notifications" json:"notifications"`
}

// SupportedLocales are the locales the notification catalogs ship with.
var SupportedLocales = []string{"en", "el"}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with eb settings import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.Name == "" {
		return fmt.Errorf("config.marketplace.name is required")
	}
	if c.Marketplace.Locale == "" {
		return fmt.Errorf("config.marketplace.locale is required")
	}
	supported := false
	for _, l := range SupportedLocales {
		if c.Marketplace.Locale == l {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("config.marketplace.locale %s not supported (have %v)", c.Marketplace.Locale, SupportedLocales)
	}
	if len(c.Catalog.QuestionCategories) == 0 {
		return fmt.Errorf("config.catalog.question_categories is required")
	}
	for i, cat := range c.Catalog.QuestionCategories {
		if cat == "" {
			return fmt.Errorf("config.catalog.question_categories[%d] is empty", i)
		}
	}
	for i, field := range c.Catalog.FieldsOfStudy {
		if field == "" {
			return fmt.Errorf("config.catalog.fields_of_study[%d] is empty", i)
		}
	}
	return nil
}

// KnownQuestionCategory reports whether cat is in the catalog.
func (c *Config) KnownQuestionCategory(cat string) bool {
	for _, known := range c.Catalog.QuestionCategories {
		if cat == known {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "essaybid.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  name: Essay Bid Marketplace
  locale: en

catalog:
  fields_of_study:
    - Computer Science
    - Engineering
    - Business
    - Medicine
    - Psychology
    - Law
    - Education
    - Arts
    - Sciences

  question_categories:
    - general
    - technical
    - billing
    - account
    - support

chat:
  moderated: true

notifications:
  enabled: true
`
