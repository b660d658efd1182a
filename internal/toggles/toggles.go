// Package toggles holds the per-vehicle feature configuration bundle consumed
// by the event engine every cycle.
package toggles

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Toggles is the configuration bundle. The zero value disables every
// optional feature.
type Toggles struct {
	RandomEvents    bool   `yaml:"random_events" json:"random_events"`
	GreenLightAlert bool   `yaml:"green_light_alert" json:"green_light_alert"`
	SpeedLimitAlert bool   `yaml:"speed_limit_alert" json:"speed_limit_alert"`
	IsMetric        bool   `yaml:"is_metric" json:"is_metric"`
	HolidayTheme    string `yaml:"current_holiday_theme" json:"current_holiday_theme"`
}

// HolidayActive reports whether a holiday theme other than "none" is selected.
func (t Toggles) HolidayActive() bool {
	theme := strings.TrimSpace(strings.ToLower(t.HolidayTheme))
	return theme != "" && theme != "none" && theme != "0"
}

// Parse decodes a bundle from YAML. JSON documents are accepted too.
func Parse(data []byte) (Toggles, error) {
	var t Toggles
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Toggles{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return t, nil
}

// Load reads a bundle from path. An empty path yields the zero bundle.
func Load(path string) (Toggles, error) {
	if path == "" {
		return Toggles{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Toggles{}, fmt.Errorf("read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return Toggles{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}
