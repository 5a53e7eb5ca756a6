package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PricingTable maps assistant/feature ids to their billing parameters.
// It is loaded from a standalone YAML file so rates can be adjusted
// without rebuilding.
type PricingTable struct {
	// Default applies to assistants without an explicit entry.
	Default    AssistantPricing            `yaml:"default"`
	Assistants map[string]AssistantPricing `yaml:"assistants"`
}

// AssistantPricing holds the billing parameters for one assistant.
type AssistantPricing struct {
	// ConversionRate divides LLM-reported tokens to obtain the
	// internal-currency charge.
	ConversionRate float64 `yaml:"conversion_rate"`
}

// LoadPricingTable reads a pricing table from a YAML file. An empty path
// yields a table that always falls back to fallbackRate.
func LoadPricingTable(path string, fallbackRate float64) (*PricingTable, error) {
	table := &PricingTable{
		Default:    AssistantPricing{ConversionRate: fallbackRate},
		Assistants: map[string]AssistantPricing{},
	}

	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	if table.Default.ConversionRate <= 0 {
		table.Default.ConversionRate = fallbackRate
	}
	for id, pricing := range table.Assistants {
		if pricing.ConversionRate <= 0 {
			return nil, fmt.Errorf("pricing for assistant %q must have a positive conversion_rate", id)
		}
	}

	return table, nil
}

// RateFor returns the conversion rate for an assistant, falling back to
// the default entry.
func (t *PricingTable) RateFor(assistantID string) float64 {
	if pricing, ok := t.Assistants[assistantID]; ok {
		return pricing.ConversionRate
	}
	return t.Default.ConversionRate
}
