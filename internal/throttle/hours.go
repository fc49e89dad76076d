package throttle

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Allowed-hours window for outbound contact, in the recipient's local time.
const (
	// AllowedStartHour is the first local hour sends are permitted (inclusive).
	AllowedStartHour = 8
	// AllowedEndHour is the local hour sends stop (exclusive).
	AllowedEndHour = 21
)

// IsWithinAllowedHours reports whether the current time falls inside the
// allowed contact window for a recipient at the given UTC offset in hours.
func IsWithinAllowedHours(utcOffsetHours int) bool {
	return isWithinAllowedHoursAt(utcOffsetHours, time.Now())
}

func isWithinAllowedHoursAt(utcOffsetHours int, now time.Time) bool {
	local := now.UTC().Add(time.Duration(utcOffsetHours) * time.Hour)
	hour := local.Hour()
	return hour >= AllowedStartHour && hour < AllowedEndHour
}

// VaryText substitutes each {key} placeholder in template with a randomly
// chosen option from variations. Keys without options are left untouched.
// Varying outbound text avoids sending byte-identical messages to many
// recipients, which messaging platforms flag as spam.
func VaryText(template string, variations map[string][]string) string {
	out := template
	for key, options := range variations {
		if len(options) == 0 {
			continue
		}
		choice := options[rand.IntN(len(options))]
		out = strings.ReplaceAll(out, "{"+key+"}", choice)
	}
	return out
}
