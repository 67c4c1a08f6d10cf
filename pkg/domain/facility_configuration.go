package domain

import "strconv"

// TemperatureUnit selects the unit used when presenting environmental readings.
type TemperatureUnit string

// Supported temperature units.
const (
	TemperatureCelsius    TemperatureUnit = "celsius"
	TemperatureFahrenheit TemperatureUnit = "fahrenheit"
)

// Valid reports whether u is a supported unit.
func (u TemperatureUnit) Valid() bool {
	return u == TemperatureCelsius || u == TemperatureFahrenheit
}

// Facility configuration bounds.
const (
	MinPasswordLengthLower     = 6
	MinPasswordLengthUpper     = 32
	SessionTimeoutLower        = 15
	SessionTimeoutUpper        = 1440
	MaxLoginAttemptsLower      = 3
	MaxLoginAttemptsUpper      = 10
	PasswordExpiryLower        = 0
	PasswordExpiryUpper        = 365
	DataRetentionLower         = 30
	DataRetentionUpper         = 3650
	AuditLogRetentionLower     = 90
	AuditLogRetentionUpper     = 3650
	BackupFrequencyLower       = 1
	BackupFrequencyUpper       = 168
	MaxAnimalsPerRoomLower     = 1
	MaxAnimalsPerRoomUpper     = 1000
	defaultFacilityPasswordLen = 8
)

// FacilityConfiguration holds facility-wide policy: password and session rules, retention
// windows, backups and notifications.
type FacilityConfiguration struct {
	Version                  string          `json:"version" yaml:"version"`
	Default                  bool            `json:"isDefault" yaml:"isDefault"`
	RequireTwoFactor         bool            `json:"requireTwoFactor" yaml:"requireTwoFactor"`
	MinPasswordLength        int             `json:"minPasswordLength" yaml:"minPasswordLength"`
	SessionTimeoutMinutes    int             `json:"sessionTimeoutMinutes" yaml:"sessionTimeoutMinutes"`
	MaxLoginAttempts         int             `json:"maxLoginAttempts" yaml:"maxLoginAttempts"`
	PasswordExpiryDays       int             `json:"passwordExpiryDays" yaml:"passwordExpiryDays"`
	DataRetentionDays        int             `json:"dataRetentionDays" yaml:"dataRetentionDays"`
	AuditLogRetentionDays    int             `json:"auditLogRetentionDays" yaml:"auditLogRetentionDays"`
	BackupFrequencyHours     int             `json:"backupFrequencyHours" yaml:"backupFrequencyHours"`
	EnableAutomaticBackups   bool            `json:"enableAutomaticBackups" yaml:"enableAutomaticBackups"`
	EnableEmailNotifications bool            `json:"enableEmailNotifications" yaml:"enableEmailNotifications"`
	EnableSMSNotifications   bool            `json:"enableSMSNotifications" yaml:"enableSMSNotifications"`
	NotificationRecipients   []string        `json:"notificationRecipients" yaml:"notificationRecipients"`
	MaxAnimalsPerRoom        int             `json:"maxAnimalsPerRoom" yaml:"maxAnimalsPerRoom"`
	TemperatureUnit          TemperatureUnit `json:"temperatureUnit" yaml:"temperatureUnit"`
}

var _ Configuration = FacilityConfiguration{}

// DefaultFacilityConfiguration returns the canonical facility preset. Every field gets its
// default here and only here.
func DefaultFacilityConfiguration() FacilityConfiguration {
	return FacilityConfiguration{
		Version:                  CurrentConfigurationVersion,
		Default:                  true,
		RequireTwoFactor:         false,
		MinPasswordLength:        defaultFacilityPasswordLen,
		SessionTimeoutMinutes:    60,
		MaxLoginAttempts:         5,
		PasswordExpiryDays:       90,
		DataRetentionDays:        365,
		AuditLogRetentionDays:    730,
		BackupFrequencyHours:     24,
		EnableAutomaticBackups:   true,
		EnableEmailNotifications: true,
		EnableSMSNotifications:   false,
		NotificationRecipients:   []string{},
		MaxAnimalsPerRoom:        50,
		TemperatureUnit:          TemperatureCelsius,
	}
}

// MinimalFacilityConfiguration relaxes the default for tests and demos.
func MinimalFacilityConfiguration() FacilityConfiguration {
	return DefaultFacilityConfiguration().with(func(c *FacilityConfiguration) {
		c.Default = false
		c.MinPasswordLength = MinPasswordLengthLower
		c.SessionTimeoutMinutes = SessionTimeoutUpper
		c.MaxLoginAttempts = MaxLoginAttemptsUpper
		c.PasswordExpiryDays = 0
		c.DataRetentionDays = DataRetentionLower
		c.AuditLogRetentionDays = AuditLogRetentionLower
		c.EnableAutomaticBackups = false
		c.EnableEmailNotifications = false
	})
}

// SecureFacilityConfiguration hardens the default.
func SecureFacilityConfiguration() FacilityConfiguration {
	return DefaultFacilityConfiguration().with(func(c *FacilityConfiguration) {
		c.Default = false
		c.RequireTwoFactor = true
		c.MinPasswordLength = 14
		c.SessionTimeoutMinutes = SessionTimeoutLower
		c.MaxLoginAttempts = MaxLoginAttemptsLower
		c.PasswordExpiryDays = 60
		c.DataRetentionDays = 2555
		c.AuditLogRetentionDays = 2555
		c.BackupFrequencyHours = 6
		c.EnableSMSNotifications = true
	})
}

// FacilityConfigurationPreset returns the named preset.
func FacilityConfigurationPreset(p Preset) FacilityConfiguration {
	switch p {
	case PresetMinimal:
		return MinimalFacilityConfiguration()
	case PresetSecure:
		return SecureFacilityConfiguration()
	default:
		return DefaultFacilityConfiguration()
	}
}

func (c FacilityConfiguration) with(override func(*FacilityConfiguration)) FacilityConfiguration {
	cp := c.Clone()
	override(&cp)
	return cp
}

// Clone returns a deep copy.
func (c FacilityConfiguration) Clone() FacilityConfiguration {
	cp := c
	if c.NotificationRecipients != nil {
		cp.NotificationRecipients = append([]string{}, c.NotificationRecipients...)
	}
	return cp
}

// ConfigurationType implements Configuration.
func (FacilityConfiguration) ConfigurationType() string { return ConfigurationTypeFacility }

// ConfigurationVersion implements Configuration.
func (c FacilityConfiguration) ConfigurationVersion() string { return c.Version }

// IsDefault implements Configuration.
func (c FacilityConfiguration) IsDefault() bool { return c.Default }

// Validate checks every numeric field against its fixed range and each recipient address.
func (c FacilityConfiguration) Validate() []ValidationError {
	return Rules(
		versionRule(c.Version),
		InRange(c.MinPasswordLength, MinPasswordLengthLower, MinPasswordLengthUpper, "minPasswordLength"),
		InRange(c.SessionTimeoutMinutes, SessionTimeoutLower, SessionTimeoutUpper, "sessionTimeoutMinutes"),
		InRange(c.MaxLoginAttempts, MaxLoginAttemptsLower, MaxLoginAttemptsUpper, "maxLoginAttempts"),
		InRange(c.PasswordExpiryDays, PasswordExpiryLower, PasswordExpiryUpper, "passwordExpiryDays"),
		InRange(c.DataRetentionDays, DataRetentionLower, DataRetentionUpper, "dataRetentionDays"),
		InRange(c.AuditLogRetentionDays, AuditLogRetentionLower, AuditLogRetentionUpper, "auditLogRetentionDays"),
		InRange(c.BackupFrequencyHours, BackupFrequencyLower, BackupFrequencyUpper, "backupFrequencyHours"),
		InRange(c.MaxAnimalsPerRoom, MaxAnimalsPerRoomLower, MaxAnimalsPerRoomUpper, "maxAnimalsPerRoom"),
		Check(c.TemperatureUnit.Valid, func() ValidationError {
			return InvalidFormat("temperatureUnit", "celsius|fahrenheit")
		}),
		EachEmail(c.NotificationRecipients, "notificationRecipients"),
	).Validate()
}

func facilityConfigurationOptions() []ConfigurationOption {
	d := DefaultFacilityConfiguration()
	itoa := strconv.Itoa
	btoa := strconv.FormatBool
	return []ConfigurationOption{
		{Field: "version", Type: "string", Range: SemanticVersionPattern, Default: d.Version},
		{Field: "requireTwoFactor", Type: "bool", Default: btoa(d.RequireTwoFactor)},
		{Field: "minPasswordLength", Type: "int", Range: rangeText(MinPasswordLengthLower, MinPasswordLengthUpper), Default: itoa(d.MinPasswordLength)},
		{Field: "sessionTimeoutMinutes", Type: "int", Range: rangeText(SessionTimeoutLower, SessionTimeoutUpper), Default: itoa(d.SessionTimeoutMinutes)},
		{Field: "maxLoginAttempts", Type: "int", Range: rangeText(MaxLoginAttemptsLower, MaxLoginAttemptsUpper), Default: itoa(d.MaxLoginAttempts)},
		{Field: "passwordExpiryDays", Type: "int", Range: rangeText(PasswordExpiryLower, PasswordExpiryUpper), Default: itoa(d.PasswordExpiryDays)},
		{Field: "dataRetentionDays", Type: "int", Range: rangeText(DataRetentionLower, DataRetentionUpper), Default: itoa(d.DataRetentionDays)},
		{Field: "auditLogRetentionDays", Type: "int", Range: rangeText(AuditLogRetentionLower, AuditLogRetentionUpper), Default: itoa(d.AuditLogRetentionDays)},
		{Field: "backupFrequencyHours", Type: "int", Range: rangeText(BackupFrequencyLower, BackupFrequencyUpper), Default: itoa(d.BackupFrequencyHours)},
		{Field: "enableAutomaticBackups", Type: "bool", Default: btoa(d.EnableAutomaticBackups)},
		{Field: "enableEmailNotifications", Type: "bool", Default: btoa(d.EnableEmailNotifications)},
		{Field: "enableSMSNotifications", Type: "bool", Default: btoa(d.EnableSMSNotifications)},
		{Field: "notificationRecipients", Type: "[]string", Range: EmailPattern, Default: "[]"},
		{Field: "maxAnimalsPerRoom", Type: "int", Range: rangeText(MaxAnimalsPerRoomLower, MaxAnimalsPerRoomUpper), Default: itoa(d.MaxAnimalsPerRoom)},
		{Field: "temperatureUnit", Type: "enum", Range: "celsius|fahrenheit", Default: string(d.TemperatureUnit)},
	}
}
