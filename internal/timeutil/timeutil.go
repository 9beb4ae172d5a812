package timeutil

import (
	"strconv"
	"strings"
	"time"
)

func ParseHHMM(s string) (int, int, bool) {
	if len(s) < 4 || len(s) > 5 { return 0, 0, false }
	layout := "15:04"
	t, err := time.Parse(layout, s)
	if err != nil { return 0, 0, false }
	return t.Hour(), t.Minute(), true
}

// NextFire returns the first h:m:00 in loc that is strictly after now.
// The day is advanced with time.Date so DST shifts keep the wall-clock time.
func NextFire(now time.Time, h, m int, loc *time.Location) time.Time {
	now = now.In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, loc)
	if !now.Before(next) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, h, m, 0, 0, loc)
	}
	return next
}

// ParseClock parses split times as reported by paceman ("9:32", "1:02:03").
func ParseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 { return 0, false }
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 { return 0, false }
		if i > 0 && n > 59 { return 0, false }
		d = d*60 + time.Duration(n)
	}
	return d * time.Second, true
}

// FormatClock renders d as m:ss, or h:mm:ss past an hour.
func FormatClock(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return strconv.FormatInt(h, 10) + ":" + pad2(m) + ":" + pad2(s)
	}
	return strconv.FormatInt(m, 10) + ":" + pad2(s)
}

func pad2(n int64) string {
	if n < 10 { return "0" + strconv.FormatInt(n, 10) }
	return strconv.FormatInt(n, 10)
}
