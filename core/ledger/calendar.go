package ledger

import (
	"strings"
	"time"
)

const (
	EnrollmentConcept    = "Enrollment"
	EnrollmentPeriodName = "Enrollment"
	TuitionConceptPrefix = "Tuition "
)

// Period is a monthly tuition billing period.
type Period struct {
	Month time.Month
	Name  string
}

// Concept is the label under which the period's Debt is booked, eg. "Tuition March".
func (p Period) Concept() string {
	return TuitionConceptPrefix + p.Name
}

// AcademicPeriods are the ten billing periods of the school year, March through December.
var AcademicPeriods = func() []Period {
	periods := make([]Period, 0, 10)
	for m := time.March; m <= time.December; m++ {
		periods = append(periods, Period{Month: m, Name: m.String()})
	}
	return periods
}()

// Calendar places the academic periods in a billing year.
type Calendar struct {
	Year int
	// GraceMonths is the number of months after its own month a period falls due at month end.
	GraceMonths int
	Location    *time.Location
	Periods     []Period
}

func NewCalendar(year, graceMonths int, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{
		Year:        year,
		GraceMonths: graceMonths,
		Location:    loc,
		Periods:     AcademicPeriods,
	}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// DueDate is the last day of the month `GraceMonths` after the period's month.
func (c Calendar) DueDate(p Period) Date {
	// day 0 of the following month is the last day of the due month
	return Date{time.Date(c.Year, p.Month+time.Month(c.GraceMonths)+1, 0, 0, 0, 0, 0, time.UTC)}
}

// PeriodByConcept finds the tuition period booked under `concept` (case-insensitive).
func (c Calendar) PeriodByConcept(concept string) (Period, bool) {
	for _, p := range c.Periods {
		if strings.EqualFold(p.Concept(), strings.TrimSpace(concept)) {
			return p, true
		}
	}
	return Period{}, false
}
