// Package partition names backup objects under their cadence prefixes.
//
// Every capture yields one daily key and, on the designated weekly day, a
// weekly key with the same date and timestamp components:
//
//	daily/2024/06/09/20240609000000.tar.gz
//	weekly/2024/06/09/20240609000000.tar.gz
//
// All components are computed in UTC.
package partition

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Cadence is the repeating interval a backup belongs to.
type Cadence string

const (
	Daily  Cadence = "daily"
	Weekly Cadence = "weekly"
)

// Prefix is the key prefix objects of this cadence live under.
func (c Cadence) Prefix() string { return string(c) + "/" }

// ParseCadence accepts "daily" or "weekly" in any case.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	}
	return "", fmt.Errorf("unknown cadence %q", s)
}

const timestampLayout = "20060102150405"

// Key is the storage key of one backup object.
type Key struct {
	Cadence   Cadence
	Year      string
	Month     string
	Day       string
	Timestamp string
	Extension string
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s/%s/%s/%s.%s", k.Cadence.Prefix(), k.Year, k.Month, k.Day, k.Timestamp, k.Extension)
}

// Keys holds the keys produced for one capture. Weekly is nil off the weekly day.
type Keys struct {
	Daily  Key
	Weekly *Key
}

// All returns the daily key followed by the weekly key when present.
func (k Keys) All() []Key {
	out := []Key{k.Daily}
	if k.Weekly != nil {
		out = append(out, *k.Weekly)
	}
	return out
}

// starBit marks a cron field written as "*".
const starBit = 1 << 63

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Namer computes keys for capture instants. It holds no mutable state.
type Namer struct {
	ext      string
	schedule *cron.SpecSchedule
	weekday  time.Weekday
}

// New builds a Namer for files with extension ext whose weekly day is the day
// weeklySpec fires on. weeklySpec is a standard five-field cron expression (or
// a descriptor such as "@weekly") that fires on exactly one weekday with
// unrestricted day-of-month and month fields.
func New(ext, weeklySpec string) (*Namer, error) {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return nil, errors.New("partition: extension is empty")
	}
	if strings.ContainsAny(ext, "/\\") {
		return nil, fmt.Errorf("partition: extension %q contains a path separator", ext)
	}
	if strings.TrimSpace(weeklySpec) == "" {
		weeklySpec = "@weekly"
	}

	sched, err := parser.Parse(weeklySpec)
	if err != nil {
		return nil, fmt.Errorf("partition: weekly schedule %q: %w", weeklySpec, err)
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("partition: weekly schedule %q is not calendar based", weeklySpec)
	}
	if spec.Dom&starBit == 0 || spec.Month&starBit == 0 {
		return nil, fmt.Errorf("partition: weekly schedule %q must not restrict day-of-month or month", weeklySpec)
	}
	days := spec.Dow &^ starBit
	if bits.OnesCount64(days) != 1 {
		return nil, fmt.Errorf("partition: weekly schedule %q must fire on exactly one weekday", weeklySpec)
	}
	// Keys are computed in UTC, so a zoned schedule would name a different day.
	if spec.Location != time.Local && spec.Location != time.UTC {
		return nil, fmt.Errorf("partition: weekly schedule %q must not set a time zone (keys use UTC)", weeklySpec)
	}
	spec.Location = time.UTC

	return &Namer{
		ext:      ext,
		schedule: spec,
		weekday:  time.Weekday(bits.TrailingZeros64(days)),
	}, nil
}

// Weekday is the designated weekly day.
func (n *Namer) Weekday() time.Weekday { return n.weekday }

// Extension is the file extension appended to every key.
func (n *Namer) Extension() string { return n.ext }

// IsWeeklyDay reports whether the UTC calendar day of t is the weekly day.
func (n *Namer) IsWeeklyDay(t time.Time) bool {
	return t.UTC().Weekday() == n.weekday
}

// NextWeekly returns the next firing of the weekly schedule strictly after t.
func (n *Namer) NextWeekly(t time.Time) time.Time {
	return n.schedule.Next(t.UTC())
}

// Keys returns the keys for a capture at t. Sub-second precision is dropped.
func (n *Namer) Keys(t time.Time) Keys {
	u := t.UTC()
	daily := Key{
		Cadence:   Daily,
		Year:      fmt.Sprintf("%04d", u.Year()),
		Month:     fmt.Sprintf("%02d", int(u.Month())),
		Day:       fmt.Sprintf("%02d", u.Day()),
		Timestamp: u.Format(timestampLayout),
		Extension: n.ext,
	}
	out := Keys{Daily: daily}
	if n.IsWeeklyDay(u) {
		weekly := daily
		weekly.Cadence = Weekly
		out.Weekly = &weekly
	}
	return out
}

// ParseKey splits a key produced by Keys back into its components.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimPrefix(s, "/"), "/")
	if len(parts) != 5 {
		return Key{}, fmt.Errorf("partition: key %q: want 5 segments, got %d", s, len(parts))
	}
	c, err := ParseCadence(parts[0])
	if err != nil {
		return Key{}, fmt.Errorf("partition: key %q: %w", s, err)
	}
	ts, ext, ok := strings.Cut(parts[4], ".")
	if !ok || ext == "" {
		return Key{}, fmt.Errorf("partition: key %q has no extension", s)
	}
	at, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return Key{}, fmt.Errorf("partition: key %q: %w", s, err)
	}
	k := Key{Cadence: c, Year: parts[1], Month: parts[2], Day: parts[3], Timestamp: ts, Extension: ext}
	if at.Format("2006") != k.Year || at.Format("01") != k.Month || at.Format("02") != k.Day {
		return Key{}, fmt.Errorf("partition: key %q: date segments disagree with timestamp", s)
	}
	return k, nil
}

// Time returns the capture instant encoded in the key's timestamp.
func (k Key) Time() (time.Time, error) {
	return time.Parse(timestampLayout, k.Timestamp)
}
