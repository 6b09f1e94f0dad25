// Package clockunits parses the duration and file-size string grammar used
// throughout rule and config documents, and wraps the wall/monotonic
// timestamp headers carried by every packet.
package clockunits

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMissingUnit is returned when a duration or file-size string has no suffix.
var ErrMissingUnit = errors.New("missing unit suffix")

// ErrNonPositive is returned when a duration or file-size value is not strictly positive.
var ErrNonPositive = errors.New("value must be strictly positive")

var durationUnits = map[string]float64{
	"ns": 1,
	"us": 1e3,
	"ms": 1e6,
	"s":  1e9,
	"m":  1e9 * 60,
	"h":  1e9 * 60 * 60,
}

var fileSizeUnits = map[string]float64{
	"B":   1,
	"KiB": math.Pow(1024, 1),
	"MiB": math.Pow(1024, 2),
	"GiB": math.Pow(1024, 3),
	"TiB": math.Pow(1024, 4),
}

// ParseDuration parses a "<value><unit>" string, unit one of ns/us/ms/s/m/h.
// Value is read before the unit suffix (not the reverse, which a stale
// revision of the original implementation got backwards).
func ParseDuration(str string) (time.Duration, error) {
	val, suffix, err := splitValueUnit(str)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", str, err)
	}
	scale, ok := durationUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("duration %q: unknown unit %q, known: ns, us, ms, s, m, h", str, suffix)
	}
	return time.Duration(int64(val * scale)), nil
}

// ParseFileSize parses a "<value><unit>" string, unit one of B/KiB/MiB/GiB/TiB.
func ParseFileSize(str string) (uint64, error) {
	val, suffix, err := splitValueUnit(str)
	if err != nil {
		return 0, fmt.Errorf("filesize %q: %w", str, err)
	}
	scale, ok := fileSizeUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("filesize %q: unknown unit %q, known: B, KiB, MiB, GiB, TiB", str, suffix)
	}
	return uint64(val * scale), nil
}

// splitValueUnit reads a leading numeric value followed by an alphabetic
// unit suffix, with nothing left over. Mirrors the original "value then
// suffix" stream-extraction order.
func splitValueUnit(str string) (float64, string, error) {
	i := 0
	for i < len(str) && (str[i] == '.' || str[i] == '-' || str[i] == '+' || (str[i] >= '0' && str[i] <= '9')) {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("expected a leading numeric value")
	}
	valStr, suffix := str[:i], strings.TrimSpace(str[i:])
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid numeric value %q: %w", valStr, err)
	}
	if val <= 0 {
		return 0, "", ErrNonPositive
	}
	if suffix == "" {
		return 0, "", ErrMissingUnit
	}
	return val, suffix, nil
}

// WallTime is the `a0_time_wall` packet header: wall-clock seconds+nanoseconds UTC.
type WallTime struct {
	time.Time
}

// ParseWallTime parses a wall-clock header value, formatted as
// "<seconds>.<nanoseconds>" UTC, matching the original TimeWall::parse format.
func ParseWallTime(s string) (WallTime, error) {
	sec, nsec, err := splitSecNsec(s)
	if err != nil {
		return WallTime{}, fmt.Errorf("wall time %q: %w", s, err)
	}
	return WallTime{time.Unix(sec, nsec).UTC()}, nil
}

// String renders the wall time in the same "<seconds>.<nanoseconds>" form
// used by output file names.
func (w WallTime) String() string {
	return fmt.Sprintf("%d.%09d", w.Unix(), int64(w.Nanosecond()))
}

// MonoTime is the `a0_time_mono` packet header: a monotonic nanosecond count.
// It has no wall-clock meaning; only comparisons and durations are valid.
type MonoTime struct {
	nanos int64
}

// ParseMonoTime parses a monotonic header value, formatted as
// "<seconds>.<nanoseconds>".
func ParseMonoTime(s string) (MonoTime, error) {
	sec, nsec, err := splitSecNsec(s)
	if err != nil {
		return MonoTime{}, fmt.Errorf("mono time %q: %w", s, err)
	}
	return MonoTime{nanos: sec*1e9 + nsec}, nil
}

// MonoTimeFromNow returns reference's Unix nanosecond count shifted by d, as
// a MonoTime. The result is in the wall-clock domain, not CLOCK_MONOTONIC,
// so it is not comparable with Now() or with a0_time_mono headers.
func MonoTimeFromNow(reference time.Time, d time.Duration) MonoTime {
	return MonoTime{nanos: reference.UnixNano() + int64(d)}
}

// String renders the monotonic time in the same "<seconds>.<nanoseconds>"
// form ParseMonoTime accepts, letting a header round-trip through this type.
func (m MonoTime) String() string {
	return fmt.Sprintf("%d.%09d", m.nanos/1e9, m.nanos%1e9)
}

// Add returns m shifted by d (may be negative).
func (m MonoTime) Add(d time.Duration) MonoTime {
	return MonoTime{nanos: m.nanos + int64(d)}
}

// Sub returns the duration between m and other (m - other).
func (m MonoTime) Sub(other MonoTime) time.Duration {
	return time.Duration(m.nanos - other.nanos)
}

// Before reports whether m happens strictly before other.
func (m MonoTime) Before(other MonoTime) bool { return m.nanos < other.nanos }

// After reports whether m happens strictly after other.
func (m MonoTime) After(other MonoTime) bool { return m.nanos > other.nanos }

// Equal reports whether m and other represent the same instant.
func (m MonoTime) Equal(other MonoTime) bool { return m.nanos == other.nanos }

func splitSecNsec(s string) (int64, int64, error) {
	parts := strings.SplitN(s, ".", 2)
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid seconds component: %w", err)
	}
	if len(parts) == 1 {
		return sec, 0, nil
	}
	nsecStr := parts[1]
	for len(nsecStr) < 9 {
		nsecStr += "0"
	}
	nsecStr = nsecStr[:9]
	nsec, err := strconv.ParseInt(nsecStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid nanoseconds component: %w", err)
	}
	return sec, nsec, nil
}
