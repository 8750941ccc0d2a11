package market

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Overrides adjusts built-in market parameters from a YAML file:
//
//	markets:
//	  IN:
//	    default_balance: 200000
//	    margin_multiplier: 5
//	  US:
//	    display_rate: 83.5
type Overrides struct {
	Markets map[string]PolicyOverride `yaml:"markets"`
}

type PolicyOverride struct {
	DefaultBalance   *float64 `yaml:"default_balance"`
	MarginMultiplier *float64 `yaml:"margin_multiplier"`
	DisplayRate      *float64 `yaml:"display_rate"`
}

func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markets file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse markets file: %w", err)
	}
	return &o, nil
}

// Apply mutates the registry's policies. Unknown market names are an error.
func (r *Registry) Apply(o *Overrides) error {
	if o == nil {
		return nil
	}
	for name, po := range o.Markets {
		p, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown market %q in overrides", name)
		}
		if po.DefaultBalance != nil {
			if *po.DefaultBalance <= 0 {
				return fmt.Errorf("%s: default_balance must be positive", p.Code)
			}
			p.DefaultBalance = decimal.NewFromFloat(*po.DefaultBalance)
		}
		if po.MarginMultiplier != nil {
			if *po.MarginMultiplier < 0 {
				return fmt.Errorf("%s: margin_multiplier must not be negative", p.Code)
			}
			p.MarginMultiplier = decimal.NewFromFloat(*po.MarginMultiplier)
		}
		if po.DisplayRate != nil {
			if *po.DisplayRate < 0 {
				return fmt.Errorf("%s: display_rate must not be negative", p.Code)
			}
			p.DisplayRate = decimal.NewFromFloat(*po.DisplayRate)
		}
	}
	return nil
}
