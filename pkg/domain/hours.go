package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock hour and minute with no date or zone.
type TimeOfDay struct {
	Hour   int `json:"hour" yaml:"hour" firestore:"hour"`
	Minute int `json:"minute" yaml:"minute" firestore:"minute"`
}

// At returns a TimeOfDay pointer for the given hour and minute.
func At(hour, minute int) *TimeOfDay {
	return &TimeOfDay{Hour: hour, Minute: minute}
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool { return t.Minutes() < other.Minutes() }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Validate implements Validator.
func (t TimeOfDay) Validate() []ValidationError {
	return Rules(
		InRange(t.Hour, 0, 23, "hour"),
		InRange(t.Minute, 0, 59, "minute"),
	).Validate()
}

// DayHours describes one weekday. Closed days ignore the time fields.
type DayHours struct {
	IsOpen    bool       `json:"isOpen" yaml:"isOpen" firestore:"isOpen"`
	OpenTime  *TimeOfDay `json:"openTime,omitempty" yaml:"openTime,omitempty" firestore:"openTime,omitempty"`
	CloseTime *TimeOfDay `json:"closeTime,omitempty" yaml:"closeTime,omitempty" firestore:"closeTime,omitempty"`
}

const ruleOpenBeforeClose = "openTime must be before closeTime"

// OpenBetween returns an open day.
func OpenBetween(open, close TimeOfDay) DayHours {
	return DayHours{IsOpen: true, OpenTime: &open, CloseTime: &close}
}

// Closed returns a closed day.
func Closed() DayHours { return DayHours{} }

// Validate implements Validator.
func (d DayHours) Validate() []ValidationError {
	if !d.IsOpen {
		return nil
	}
	rules := RuleSet{
		Check(func() bool { return d.OpenTime != nil }, func() ValidationError { return RequiredFieldMissing("openTime") }),
		Check(func() bool { return d.CloseTime != nil }, func() ValidationError { return RequiredFieldMissing("closeTime") }),
	}
	if d.OpenTime != nil && d.CloseTime != nil {
		rules = append(rules,
			Nested("openTime", *d.OpenTime),
			Nested("closeTime", *d.CloseTime),
			Check(func() bool { return d.OpenTime.Before(*d.CloseTime) }, func() ValidationError {
				return BusinessRuleViolation(ruleOpenBeforeClose)
			}),
		)
	}
	return rules.Validate()
}

// Contains reports whether the given time of day falls in [open, close). Windows that wrap
// past midnight never contain anything.
func (d DayHours) Contains(t TimeOfDay) bool {
	if !d.IsOpen || d.OpenTime == nil || d.CloseTime == nil {
		return false
	}
	if !d.OpenTime.Before(*d.CloseTime) {
		return false
	}
	m := t.Minutes()
	return d.OpenTime.Minutes() <= m && m < d.CloseTime.Minutes()
}

// Clone returns a deep copy.
func (d DayHours) Clone() DayHours {
	cp := d
	if d.OpenTime != nil {
		v := *d.OpenTime
		cp.OpenTime = &v
	}
	if d.CloseTime != nil {
		v := *d.CloseTime
		cp.CloseTime = &v
	}
	return cp
}

// OperatingHours is the weekly schedule of a facility.
type OperatingHours struct {
	Monday    DayHours `json:"monday" yaml:"monday" firestore:"monday"`
	Tuesday   DayHours `json:"tuesday" yaml:"tuesday" firestore:"tuesday"`
	Wednesday DayHours `json:"wednesday" yaml:"wednesday" firestore:"wednesday"`
	Thursday  DayHours `json:"thursday" yaml:"thursday" firestore:"thursday"`
	Friday    DayHours `json:"friday" yaml:"friday" firestore:"friday"`
	Saturday  DayHours `json:"saturday" yaml:"saturday" firestore:"saturday"`
	Sunday    DayHours `json:"sunday" yaml:"sunday" firestore:"sunday"`
}

// StandardOperatingHours is open 08:00–18:00 on weekdays and closed at weekends.
func StandardOperatingHours() OperatingHours {
	weekday := OpenBetween(TimeOfDay{Hour: 8}, TimeOfDay{Hour: 18})
	return OperatingHours{
		Monday:    weekday.Clone(),
		Tuesday:   weekday.Clone(),
		Wednesday: weekday.Clone(),
		Thursday:  weekday.Clone(),
		Friday:    weekday.Clone(),
		Saturday:  Closed(),
		Sunday:    Closed(),
	}
}

// Day returns the hours for a weekday.
func (h OperatingHours) Day(day time.Weekday) DayHours {
	switch day {
	case time.Monday:
		return h.Monday
	case time.Tuesday:
		return h.Tuesday
	case time.Wednesday:
		return h.Wednesday
	case time.Thursday:
		return h.Thursday
	case time.Friday:
		return h.Friday
	case time.Saturday:
		return h.Saturday
	default:
		return h.Sunday
	}
}

// Validate aggregates every day's failures under "monday.openTime" style field names.
func (h OperatingHours) Validate() []ValidationError {
	return Rules(
		Nested("monday", h.Monday),
		Nested("tuesday", h.Tuesday),
		Nested("wednesday", h.Wednesday),
		Nested("thursday", h.Thursday),
		Nested("friday", h.Friday),
		Nested("saturday", h.Saturday),
		Nested("sunday", h.Sunday),
	).Validate()
}

// IsCurrentlyOpen resolves now's weekday in now's own location and compares hour and minute
// only.
func (h OperatingHours) IsCurrentlyOpen(now time.Time) bool {
	return h.Day(now.Weekday()).Contains(TimeOfDay{Hour: now.Hour(), Minute: now.Minute()})
}

// Clone returns a deep copy.
func (h OperatingHours) Clone() OperatingHours {
	return OperatingHours{
		Monday:    h.Monday.Clone(),
		Tuesday:   h.Tuesday.Clone(),
		Wednesday: h.Wednesday.Clone(),
		Thursday:  h.Thursday.Clone(),
		Friday:    h.Friday.Clone(),
		Saturday:  h.Saturday.Clone(),
		Sunday:    h.Sunday.Clone(),
	}
}
