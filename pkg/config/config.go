// Package config describes the application configuration an installation
// runs against: which event providers to create, which webhooks to
// subscribe, and which custom installation scripts to execute.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned (wrapped) when an AppConfig fails validation.
var ErrInvalidConfig = errors.New("invalid app config")

// AppConfig is the installation-relevant part of an application's manifest.
type AppConfig struct {
	Metadata     Metadata      `yaml:"metadata" json:"metadata" validate:"required"`
	Eventing     *Eventing     `yaml:"eventing,omitempty" json:"eventing,omitempty" validate:"omitempty"`
	Webhooks     []Webhook     `yaml:"webhooks,omitempty" json:"webhooks,omitempty" validate:"omitempty,dive"`
	Installation *Installation `yaml:"installation,omitempty" json:"installation,omitempty" validate:"omitempty"`
}

// Metadata identifies the application.
type Metadata struct {
	ID          string `yaml:"id" json:"id" validate:"required,max=64"`
	DisplayName string `yaml:"displayName" json:"displayName" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version" json:"version" validate:"required"`
}

// Eventing groups the event providers the application publishes through.
type Eventing struct {
	Commerce []Provider `yaml:"commerce,omitempty" json:"commerce,omitempty" validate:"omitempty,dive"`
	External []Provider `yaml:"external,omitempty" json:"external,omitempty" validate:"omitempty,dive"`
}

// Provider is an event provider along with the events it emits.
type Provider struct {
	Label       string  `yaml:"label" json:"label" validate:"required"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Key         string  `yaml:"key,omitempty" json:"key,omitempty"`
	Events      []Event `yaml:"events" json:"events" validate:"omitempty,dive"`
}

// Event is a single event emitted by a provider and the runtime action that
// consumes it.
type Event struct {
	Name          string   `yaml:"name" json:"name" validate:"required"`
	Label         string   `yaml:"label,omitempty" json:"label,omitempty"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	RuntimeAction string   `yaml:"runtimeAction" json:"runtimeAction" validate:"required"`
	Fields        []string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Webhook is a commerce webhook subscription.
type Webhook struct {
	Label         string `yaml:"label" json:"label" validate:"required"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	Method        string `yaml:"webhookMethod" json:"webhookMethod" validate:"required"`
	Type          string `yaml:"webhookType" json:"webhookType" validate:"required,oneof=before after"`
	BatchName     string `yaml:"batchName" json:"batchName" validate:"required"`
	HookName      string `yaml:"hookName" json:"hookName" validate:"required"`
	RuntimeAction string `yaml:"runtimeAction" json:"runtimeAction" validate:"required"`
}

// Installation holds installation-time extensions.
type Installation struct {
	CustomSteps []CustomStep `yaml:"customInstallationSteps,omitempty" json:"customInstallationSteps,omitempty" validate:"omitempty,dive"`
}

// CustomStep references a script registered by the application.
type CustomStep struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Script      string `yaml:"script" json:"script" validate:"required"`
}

// HasCommerceEventing reports whether any commerce event provider is configured.
func (c *AppConfig) HasCommerceEventing() bool {
	return c != nil && c.Eventing != nil && len(c.Eventing.Commerce) > 0
}

// HasExternalEventing reports whether any external event provider is configured.
func (c *AppConfig) HasExternalEventing() bool {
	return c != nil && c.Eventing != nil && len(c.Eventing.External) > 0
}

// HasEventing reports whether any event provider is configured.
func (c *AppConfig) HasEventing() bool {
	return c.HasCommerceEventing() || c.HasExternalEventing()
}

// HasWebhooks reports whether any webhook subscription is configured.
func (c *AppConfig) HasWebhooks() bool {
	return c != nil && len(c.Webhooks) > 0
}

// HasCustomInstallationSteps reports whether any custom script is configured.
func (c *AppConfig) HasCustomInstallationSteps() bool {
	return c != nil && c.Installation != nil && len(c.Installation.CustomSteps) > 0
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for missing or malformed fields.
func (c *AppConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Parse decodes and validates a configuration. JSON is a subset of YAML, so a
// single decoder handles both.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode app config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the configuration file at path. Files with a .json
// extension are decoded strictly as JSON.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var cfg AppConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode app config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return Parse(data)
}
