package domain

import "strconv"

// Building configuration bounds.
const (
	TemperatureLowerC        = -10.0
	TemperatureUpperC        = 50.0
	HumidityLower            = 0.0
	HumidityUpper            = 100.0
	AirChangesLower          = 0
	AirChangesUpper          = 60
	LightCycleLower          = 0
	LightCycleUpper          = 24
	MonitoringIntervalLower  = 1
	MonitoringIntervalUpper  = 1440
	AlertThresholdLower      = 1
	AlertThresholdUpper      = 100
	MaxOccupancyLower        = 1
	MaxOccupancyUpper        = 10000
	ruleTemperatureBandOrder = "temperatureMinC must be below temperatureMaxC"
	ruleHumidityBandOrder    = "humidityMinPercent must be below humidityMaxPercent"
)

// BuildingConfiguration holds environmental targets, monitoring cadence and access settings
// for one building.
type BuildingConfiguration struct {
	Version                       string   `json:"version" yaml:"version"`
	Default                       bool     `json:"isDefault" yaml:"isDefault"`
	TemperatureMinC               float64  `json:"temperatureMinC" yaml:"temperatureMinC"`
	TemperatureMaxC               float64  `json:"temperatureMaxC" yaml:"temperatureMaxC"`
	HumidityMinPercent            float64  `json:"humidityMinPercent" yaml:"humidityMinPercent"`
	HumidityMaxPercent            float64  `json:"humidityMaxPercent" yaml:"humidityMaxPercent"`
	AirChangesPerHour             int      `json:"airChangesPerHour" yaml:"airChangesPerHour"`
	LightCycleHours               int      `json:"lightCycleHours" yaml:"lightCycleHours"`
	EnableEnvironmentalMonitoring bool     `json:"enableEnvironmentalMonitoring" yaml:"enableEnvironmentalMonitoring"`
	MonitoringIntervalMinutes     int      `json:"monitoringIntervalMinutes" yaml:"monitoringIntervalMinutes"`
	AlertThresholdPercent         int      `json:"alertThresholdPercent" yaml:"alertThresholdPercent"`
	EnableAccessControl           bool     `json:"enableAccessControl" yaml:"enableAccessControl"`
	RequireBadgeAccess            bool     `json:"requireBadgeAccess" yaml:"requireBadgeAccess"`
	MaxOccupancy                  int      `json:"maxOccupancy" yaml:"maxOccupancy"`
	EnableAlerts                  bool     `json:"enableAlerts" yaml:"enableAlerts"`
	AlertRecipients               []string `json:"alertRecipients" yaml:"alertRecipients"`
}

var _ Configuration = BuildingConfiguration{}

// DefaultBuildingConfiguration returns the canonical building preset.
func DefaultBuildingConfiguration() BuildingConfiguration {
	return BuildingConfiguration{
		Version:                       CurrentConfigurationVersion,
		Default:                       true,
		TemperatureMinC:               18,
		TemperatureMaxC:               26,
		HumidityMinPercent:            40,
		HumidityMaxPercent:            70,
		AirChangesPerHour:             12,
		LightCycleHours:               12,
		EnableEnvironmentalMonitoring: true,
		MonitoringIntervalMinutes:     15,
		AlertThresholdPercent:         10,
		EnableAccessControl:           true,
		RequireBadgeAccess:            false,
		MaxOccupancy:                  100,
		EnableAlerts:                  true,
		AlertRecipients:               []string{},
	}
}

// MinimalBuildingConfiguration disables monitoring and access control for tests.
func MinimalBuildingConfiguration() BuildingConfiguration {
	return DefaultBuildingConfiguration().with(func(c *BuildingConfiguration) {
		c.Default = false
		c.EnableEnvironmentalMonitoring = false
		c.MonitoringIntervalMinutes = MonitoringIntervalUpper
		c.EnableAccessControl = false
		c.EnableAlerts = false
		c.AlertThresholdPercent = AlertThresholdUpper
	})
}

// SecureBuildingConfiguration tightens monitoring and access.
func SecureBuildingConfiguration() BuildingConfiguration {
	return DefaultBuildingConfiguration().with(func(c *BuildingConfiguration) {
		c.Default = false
		c.TemperatureMinC = 20
		c.TemperatureMaxC = 24
		c.HumidityMinPercent = 45
		c.HumidityMaxPercent = 60
		c.AirChangesPerHour = 15
		c.MonitoringIntervalMinutes = 5
		c.AlertThresholdPercent = 5
		c.RequireBadgeAccess = true
		c.MaxOccupancy = 50
	})
}

// BuildingConfigurationPreset returns the named preset.
func BuildingConfigurationPreset(p Preset) BuildingConfiguration {
	switch p {
	case PresetMinimal:
		return MinimalBuildingConfiguration()
	case PresetSecure:
		return SecureBuildingConfiguration()
	default:
		return DefaultBuildingConfiguration()
	}
}

func (c BuildingConfiguration) with(override func(*BuildingConfiguration)) BuildingConfiguration {
	cp := c.Clone()
	override(&cp)
	return cp
}

// Clone returns a deep copy.
func (c BuildingConfiguration) Clone() BuildingConfiguration {
	cp := c
	if c.AlertRecipients != nil {
		cp.AlertRecipients = append([]string{}, c.AlertRecipients...)
	}
	return cp
}

// ConfigurationType implements Configuration.
func (BuildingConfiguration) ConfigurationType() string { return ConfigurationTypeBuilding }

// ConfigurationVersion implements Configuration.
func (c BuildingConfiguration) ConfigurationVersion() string { return c.Version }

// IsDefault implements Configuration.
func (c BuildingConfiguration) IsDefault() bool { return c.Default }

// Validate checks ranges, band ordering and alert recipients.
func (c BuildingConfiguration) Validate() []ValidationError {
	return Rules(
		versionRule(c.Version),
		InRange(c.TemperatureMinC, TemperatureLowerC, TemperatureUpperC, "temperatureMinC"),
		InRange(c.TemperatureMaxC, TemperatureLowerC, TemperatureUpperC, "temperatureMaxC"),
		InRange(c.HumidityMinPercent, HumidityLower, HumidityUpper, "humidityMinPercent"),
		InRange(c.HumidityMaxPercent, HumidityLower, HumidityUpper, "humidityMaxPercent"),
		InRange(c.AirChangesPerHour, AirChangesLower, AirChangesUpper, "airChangesPerHour"),
		InRange(c.LightCycleHours, LightCycleLower, LightCycleUpper, "lightCycleHours"),
		InRange(c.MonitoringIntervalMinutes, MonitoringIntervalLower, MonitoringIntervalUpper, "monitoringIntervalMinutes"),
		InRange(c.AlertThresholdPercent, AlertThresholdLower, AlertThresholdUpper, "alertThresholdPercent"),
		InRange(c.MaxOccupancy, MaxOccupancyLower, MaxOccupancyUpper, "maxOccupancy"),
		Check(func() bool { return c.TemperatureMinC < c.TemperatureMaxC }, func() ValidationError {
			return BusinessRuleViolation(ruleTemperatureBandOrder)
		}),
		Check(func() bool { return c.HumidityMinPercent < c.HumidityMaxPercent }, func() ValidationError {
			return BusinessRuleViolation(ruleHumidityBandOrder)
		}),
		EachEmail(c.AlertRecipients, "alertRecipients"),
	).Validate()
}

func buildingConfigurationOptions() []ConfigurationOption {
	d := DefaultBuildingConfiguration()
	itoa := strconv.Itoa
	btoa := strconv.FormatBool
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []ConfigurationOption{
		{Field: "version", Type: "string", Range: SemanticVersionPattern, Default: d.Version},
		{Field: "temperatureMinC", Type: "float", Range: rangeText(TemperatureLowerC, TemperatureUpperC), Default: ftoa(d.TemperatureMinC)},
		{Field: "temperatureMaxC", Type: "float", Range: rangeText(TemperatureLowerC, TemperatureUpperC), Default: ftoa(d.TemperatureMaxC)},
		{Field: "humidityMinPercent", Type: "float", Range: rangeText(HumidityLower, HumidityUpper), Default: ftoa(d.HumidityMinPercent)},
		{Field: "humidityMaxPercent", Type: "float", Range: rangeText(HumidityLower, HumidityUpper), Default: ftoa(d.HumidityMaxPercent)},
		{Field: "airChangesPerHour", Type: "int", Range: rangeText(AirChangesLower, AirChangesUpper), Default: itoa(d.AirChangesPerHour)},
		{Field: "lightCycleHours", Type: "int", Range: rangeText(LightCycleLower, LightCycleUpper), Default: itoa(d.LightCycleHours)},
		{Field: "enableEnvironmentalMonitoring", Type: "bool", Default: btoa(d.EnableEnvironmentalMonitoring)},
		{Field: "monitoringIntervalMinutes", Type: "int", Range: rangeText(MonitoringIntervalLower, MonitoringIntervalUpper), Default: itoa(d.MonitoringIntervalMinutes)},
		{Field: "alertThresholdPercent", Type: "int", Range: rangeText(AlertThresholdLower, AlertThresholdUpper), Default: itoa(d.AlertThresholdPercent)},
		{Field: "enableAccessControl", Type: "bool", Default: btoa(d.EnableAccessControl)},
		{Field: "requireBadgeAccess", Type: "bool", Default: btoa(d.RequireBadgeAccess)},
		{Field: "maxOccupancy", Type: "int", Range: rangeText(MaxOccupancyLower, MaxOccupancyUpper), Default: itoa(d.MaxOccupancy)},
		{Field: "enableAlerts", Type: "bool", Default: btoa(d.EnableAlerts)},
		{Field: "alertRecipients", Type: "[]string", Range: EmailPattern, Default: "[]"},
	}
}
