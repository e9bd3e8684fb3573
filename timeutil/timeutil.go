// Package timeutil holds the wire time formats shared by the services: the
// AEST creation timestamps and the device-reported interval timestamps.
package timeutil

import (
	"fmt"
	"time"
)

const stampLayout = "2006-01-02 15:04:05"

// sydney is resolved once; the app's user base is Australian and all
// creation timestamps are recorded in Sydney time.
var sydney = func() *time.Location {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// AESTTimestamp formats t as "2006-01-02 15:04:05" in Sydney time.
func AESTTimestamp(t time.Time) string {
	return t.In(sydney).Format(stampLayout)
}

// ParseDeviceTime parses a device-reported timestamp. Devices send
// "2006-01-02 15:04:05 000" with a space-separated millisecond suffix; the
// suffix is optional.
func ParseDeviceTime(s string) (time.Time, error) {
	base := s
	var ms time.Duration
	if len(s) == len(stampLayout)+4 && s[len(stampLayout)] == ' ' {
		var n int
		if _, err := fmt.Sscanf(s[len(stampLayout)+1:], "%03d", &n); err == nil {
			base = s[:len(stampLayout)]
			ms = time.Duration(n) * time.Millisecond
		}
	}
	t, err := time.Parse(stampLayout, base)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(ms), nil
}
