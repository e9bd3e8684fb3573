package results

import "puzzle-pals-server/timeutil"

// Interval is one device-reported solve session for a (user, puzzle) pair.
// End is empty while the session is still open on the device.
type Interval struct {
	StartOnDevice string
	EndOnDevice   string
	Closed        bool
}

// SumIntervals reduces the interval log to total elapsed whole seconds. An
// interval contributes end-start only when both timestamps are present,
// parse, and start is strictly before end; everything else is skipped
// silently. Device clocks skew and sessions get abandoned, and neither
// should fail the whole computation. An empty or fully-disqualified log
// sums to 0.
func SumIntervals(intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		if iv.StartOnDevice == "" || iv.EndOnDevice == "" {
			continue
		}
		start, err := timeutil.ParseDeviceTime(iv.StartOnDevice)
		if err != nil {
			continue
		}
		end, err := timeutil.ParseDeviceTime(iv.EndOnDevice)
		if err != nil {
			continue
		}
		if !start.Before(end) {
			continue
		}
		total += int(end.Sub(start).Seconds())
	}
	return total
}
