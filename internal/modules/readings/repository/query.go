package repository

import (
	"strings"

	"github.com/setarcos/birdroom/internal/modules/readings/types"
)

const (
	selectReadings = "SELECT room_id, temperature, humidity, recorded_at FROM temperature"
	orderReadings  = "ORDER BY recorded_at ASC"

	roomPredicate    = "room_id = ?"
	windowPredicate  = "recorded_at >= ? AND recorded_at < ?"
	lastDayPredicate = "recorded_at > datetime('now', '-1 day')"
)

// BuildReadingsQuery composes the readings SELECT for f. Every value is bound
// through a placeholder and args follow the clause order. Without a complete
// window the query falls back to the last day of the storage clock.
func BuildReadingsQuery(f types.ReadingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)

	if f.RoomID != "" {
		where = append(where, roomPredicate)
		args = append(args, f.RoomID)
	}

	if f.HasWindow() {
		where = append(where, windowPredicate)
		args = append(args, ToStorageTime(f.StartTime), ToStorageTime(f.EndTime))
	} else {
		where = append(where, lastDayPredicate)
	}

	var b strings.Builder
	b.WriteString(selectReadings)
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ")
	b.WriteString(orderReadings)
	return b.String(), args
}

// ToStorageTime rewrites an ISO-8601 UTC string such as
// "2023-11-29T16:00:00.000Z" into the stored text form "2023-11-29 16:00:00.000".
// Only the first "T" and the first "Z" are touched; anything else passes
// through unchanged.
func ToStorageTime(iso string) string {
	s := strings.Replace(iso, "T", " ", 1)
	return strings.Replace(s, "Z", "", 1)
}
