package domain

import "fmt"

// Configuration is the contract shared by every versioned, self-validating settings record.
type Configuration interface {
	Validator
	ConfigurationType() string
	ConfigurationVersion() string
	IsDefault() bool
}

// Configuration type tags.
const (
	ConfigurationTypeFacility = "facility"
	ConfigurationTypeBuilding = "building"
)

// CurrentConfigurationVersion is stamped on every preset.
const CurrentConfigurationVersion = "1.0.0"

// Preset names a canonical configuration value set.
type Preset string

// Canonical presets.
const (
	PresetDefault Preset = "default"
	PresetMinimal Preset = "minimal"
	PresetSecure  Preset = "secure"
)

// Presets returns the preset names in canonical order.
func Presets() []Preset {
	return []Preset{PresetDefault, PresetMinimal, PresetSecure}
}

// ParsePreset resolves a preset name; the empty string selects the default preset.
func ParsePreset(name string) (Preset, error) {
	switch Preset(name) {
	case "", PresetDefault:
		return PresetDefault, nil
	case PresetMinimal, PresetSecure:
		return Preset(name), nil
	default:
		return "", fmt.Errorf("unknown configuration preset %q", name)
	}
}

// ConfigurationOption describes one recognised configuration field.
type ConfigurationOption struct {
	Field   string `json:"field" yaml:"field"`
	Type    string `json:"type" yaml:"type"`
	Range   string `json:"range,omitempty" yaml:"range,omitempty"`
	Default string `json:"default" yaml:"default"`
}

// ConfigurationOptions returns the option table for a configuration type, or nil when the
// type is unknown.
func ConfigurationOptions(configurationType string) []ConfigurationOption {
	switch configurationType {
	case ConfigurationTypeFacility:
		return facilityConfigurationOptions()
	case ConfigurationTypeBuilding:
		return buildingConfigurationOptions()
	default:
		return nil
	}
}

func rangeText[T Number](lower, upper T) string {
	return fmt.Sprintf("%v to %v", lower, upper)
}

func versionRule(version string) ValidationRule {
	return Rules(
		Required(version, "version"),
		Pattern(&version, SemanticVersionPattern, "version"),
	).Validate
}
