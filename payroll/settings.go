/*
settings.go - Organization-level configuration consumed by the engine

PURPOSE:
  Holds the knobs that UAE payroll law and the bank-file format key off:
  establishment identity, WPS routing, standard monthly hours (the hourly
  rate divisor), category overtime multipliers, and the gratuity tier
  constants. Nothing in the engine hardcodes these; they arrive here from
  the organization settings module.

DEFAULTS:
  Defaults mirror common UAE mainland practice (21/30 gratuity tier days,
  2-year cap, 1.25x workday overtime) but every value is overridable.
*/
package payroll

import "github.com/shopspring/decimal"

type EntityType string

const (
	EntityMainlandMOHRE EntityType = "MAINLAND_MOHRE"
	EntityFreeZone      EntityType = "FREE_ZONE"
)

// ProrationPolicy controls how mid-period component changes are handled.
type ProrationPolicy string

const (
	// ProrateDayWeighted weighs each interval by the days it covers within
	// the period. The safer default: a raise on the 16th pays half-and-half.
	ProrateDayWeighted ProrationPolicy = "day_weighted"

	// ProrateIgnoreMidPeriod resolves components as of the period start and
	// ignores changes until the next period.
	ProrateIgnoreMidPeriod ProrationPolicy = "ignore_mid_period"
)

// OrgSettings is the organization configuration the engine consumes.
type OrgSettings struct {
	EntityType               EntityType
	MOHREEstablishmentNumber string
	WPSApplicable            bool
	WPSBankRoutingCode       string
	Currency                 string

	// StandardMonthlyHours is the hourly-rate divisor: hourly = basic / hours.
	StandardMonthlyHours decimal.Decimal

	// OvertimeRates maps day-type category to its multiplier over the
	// hourly rate.
	OvertimeRates map[OvertimeCategory]decimal.Decimal

	Proration ProrationPolicy

	// Gratuity tier constants (days of basic pay accrued per year of service).
	GratuityFirst5YearDays decimal.Decimal
	GratuityAfter5YearDays decimal.Decimal
	GratuityCapYears       int
}

// DefaultSettings returns UAE mainland defaults. Callers override per entity.
func DefaultSettings() OrgSettings {
	return OrgSettings{
		EntityType:           EntityMainlandMOHRE,
		WPSApplicable:        true,
		Currency:             "AED",
		StandardMonthlyHours: decimal.NewFromInt(240),
		OvertimeRates: map[OvertimeCategory]decimal.Decimal{
			OvertimeWorkday:       decimal.RequireFromString("1.25"),
			OvertimeWeekend:       decimal.RequireFromString("1.5"),
			OvertimePublicHoliday: decimal.RequireFromString("2.5"),
		},
		Proration:              ProrateDayWeighted,
		GratuityFirst5YearDays: decimal.NewFromInt(21),
		GratuityAfter5YearDays: decimal.NewFromInt(30),
		GratuityCapYears:       2,
	}
}

// OvertimeRate returns the multiplier for a category, zero if unconfigured.
// An unconfigured category pays no overtime rather than guessing a rate.
func (s OrgSettings) OvertimeRate(cat OvertimeCategory) decimal.Decimal {
	if r, ok := s.OvertimeRates[cat]; ok {
		return r
	}
	return decimal.Zero
}
