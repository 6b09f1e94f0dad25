package clockunits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"300ms", 300 * time.Millisecond},
		{"2.5s", 2500 * time.Millisecond},
		{"1h", time.Hour},
		{"5m", 5 * time.Minute},
		{"100ns", 100 * time.Nanosecond},
		{"10us", 10 * time.Microsecond},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseDuration_Errors(t *testing.T) {
	for _, in := range []string{"-5s", "0s", "5", "5xx", "", "5s extra"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}

func TestParseFileSize(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"128MiB", 128 * 1024 * 1024},
		{"4KiB", 4 * 1024},
		{"1GiB", 1024 * 1024 * 1024},
		{"512B", 512},
	}
	for _, c := range cases {
		got, err := ParseFileSize(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestParseFileSize_Errors(t *testing.T) {
	for _, in := range []string{"-5MiB", "0MiB", "5", "5XB"} {
		_, err := ParseFileSize(in)
		assert.Error(t, err, in)
	}
}

func TestMonoTime_Ordering(t *testing.T) {
	a, err := ParseMonoTime("10.000000000")
	require.NoError(t, err)
	b, err := ParseMonoTime("10.500000000")
	require.NoError(t, err)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 500*time.Millisecond, b.Sub(a))

	c := a.Add(500 * time.Millisecond)
	assert.True(t, c.Equal(b))
}

func TestWallTime_RoundTrip(t *testing.T) {
	w, err := ParseWallTime("1700000000.123456789")
	require.NoError(t, err)
	assert.Equal(t, "1700000000.123456789", w.String())
}
