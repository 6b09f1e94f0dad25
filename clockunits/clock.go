package clockunits

import "golang.org/x/sys/unix"

// Now reads the host's CLOCK_MONOTONIC, the same clock domain producers
// stamp into a0_time_mono headers. Unlike Go's runtime-private monotonic
// reading, CLOCK_MONOTONIC is comparable across processes on one host,
// which is required for triggers to timestamp themselves against packets
// published by other processes.
func Now() MonoTime {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return MonoTime{}
	}
	sec, nsec := ts.Unix()
	return MonoTime{nanos: sec*1e9 + nsec}
}
