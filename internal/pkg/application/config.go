package application

import (
	"io"

	yaml "gopkg.in/yaml.v2"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/events"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

const DefaultCriticalLimit float64 = 100

type LinkConfig struct {
	SKU  string   `yaml:"sku"`
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
	Unit *string  `yaml:"unit"`
}

type AlertRuleConfig struct {
	types.AlertRule `yaml:",inline"`
	Products        []LinkConfig `yaml:"products"`
}

// CatalogConfig lists the master data that is created at startup. Products
// refer to their category by name.
type CatalogConfig struct {
	Categories []types.Category  `yaml:"categories"`
	Products   []types.Product   `yaml:"products"`
	AlertRules []AlertRuleConfig `yaml:"alertRules"`
}

type PanelConfig struct {
	CriticalLimit float64 `yaml:"criticalLimit"`
}

type Config struct {
	Catalog       CatalogConfig `yaml:"catalog"`
	Panel         PanelConfig   `yaml:"panel"`
	events.Config `yaml:",inline"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	if cfg.Panel.CriticalLimit <= 0 {
		cfg.Panel.CriticalLimit = DefaultCriticalLimit
	}

	return &cfg, nil
}
