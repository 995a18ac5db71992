package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx/types"

	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
)

// The availability grid is fixed: 15-minute blocks between 06:00 and 21:00.
const (
	DayStartHour  = 6
	HoursPerDay   = 15
	BlocksPerHour = 4
	BlocksPerDay  = HoursPerDay * BlocksPerHour
	BlockMinutes  = 60 / BlocksPerHour
)

// Weekday is one of the seven fixed day labels.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays returns the seven day labels in calendar order.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// ParseWeekday resolves a case-insensitive day label.
func ParseWeekday(raw string) (Weekday, error) {
	for _, day := range Weekdays() {
		if strings.EqualFold(raw, string(day)) {
			return day, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown weekday %q", raw))
}

// BlockLabel returns the wall-clock start of a block, e.g. block 1 -> "06:15".
// Index BlocksPerDay is allowed so exclusive run ends can be labelled "21:00".
func BlockLabel(block int) string {
	minutes := DayStartHour*60 + block*BlockMinutes
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// HourLabel returns the wall-clock start of an hour window, e.g. 0 -> "06:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", DayStartHour+hour)
}

// DaySchedule holds one user's busy flags for a single weekday,
// exactly BlocksPerDay entries, true meaning busy.
type DaySchedule []bool

// NewDaySchedule returns an all-free day.
func NewDaySchedule() DaySchedule {
	return make(DaySchedule, BlocksPerDay)
}

// Clone returns an independent copy.
func (d DaySchedule) Clone() DaySchedule {
	cp := make(DaySchedule, len(d))
	copy(cp, d)
	return cp
}

// WeekSchedule maps every weekday to its day grid. Invariant: all seven
// days present and each exactly BlocksPerDay long.
type WeekSchedule map[Weekday]DaySchedule

// NewWeekSchedule returns a schedule with every block free, used at registration.
func NewWeekSchedule() WeekSchedule {
	week := make(WeekSchedule, len(Weekdays()))
	for _, day := range Weekdays() {
		week[day] = NewDaySchedule()
	}
	return week
}

// SetBlock marks a single 15-minute block busy or free.
func (w WeekSchedule) SetBlock(day Weekday, block int, busy bool) error {
	sched, ok := w[day]
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown weekday %q", day))
	}
	if block < 0 || block >= BlocksPerDay {
		return appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("block index %d out of range [0,%d)", block, BlocksPerDay))
	}
	sched[block] = busy
	return nil
}

// ToggleHour sets the four blocks of an hour window in one edit. Inputs are
// validated before any flag is written, so the hour never half-applies.
func (w WeekSchedule) ToggleHour(day Weekday, hour int, busy bool) error {
	sched, ok := w[day]
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown weekday %q", day))
	}
	if hour < 0 || hour >= HoursPerDay {
		return appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("hour index %d out of range [0,%d)", hour, HoursPerDay))
	}
	for b := hour * BlocksPerHour; b < (hour+1)*BlocksPerHour; b++ {
		sched[b] = busy
	}
	return nil
}

// Day returns a copy of one weekday's grid; callers cannot mutate the original.
func (w WeekSchedule) Day(day Weekday) (DaySchedule, error) {
	sched, ok := w[day]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unknown weekday %q", day))
	}
	return sched.Clone(), nil
}

// Clone returns a deep copy, used to hand comparisons a consistent snapshot.
func (w WeekSchedule) Clone() WeekSchedule {
	cp := make(WeekSchedule, len(w))
	for day, sched := range w {
		cp[day] = sched.Clone()
	}
	return cp
}

// ToJSON serializes the schedule for the users.schedule JSONB column.
func (w WeekSchedule) ToJSON() (types.JSONText, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal week schedule: %w", err)
	}
	return types.JSONText(raw), nil
}

// WeekScheduleFromJSON restores a schedule from its stored form. Missing or
// short days normalize to all-free so older rows stay readable; oversized
// days are rejected since no sub-block representation exists.
func WeekScheduleFromJSON(raw types.JSONText) (WeekSchedule, error) {
	week := NewWeekSchedule()
	if len(raw) == 0 {
		return week, nil
	}

	var stored map[Weekday][]bool
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal week schedule: %w", err)
	}

	for rawDay, flags := range stored {
		day, err := ParseWeekday(string(rawDay))
		if err != nil {
			return nil, err
		}
		if len(flags) > BlocksPerDay {
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("day %s has %d blocks, expected at most %d", day, len(flags), BlocksPerDay))
		}
		copy(week[day], flags)
	}
	return week, nil
}
