package types

// Reading is one stored observation as returned by the query endpoint.
// RecordedAt keeps the storage form "YYYY-MM-DD HH:MM:SS" (UTC).
type Reading struct {
	RoomID      int64    `json:"room_id"`
	Temperature float64  `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	RecordedAt  string   `json:"recorded_at"`
}

// NewReading is a validated reading ready to insert. A nil Humidity is stored
// as NULL.
type NewReading struct {
	RoomID      int64
	Temperature float64
	Humidity    *float64
}

type Room struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ReadingFilter carries the raw query parameters of a readings query. Empty
// fields are treated as absent.
type ReadingFilter struct {
	RoomID    string
	StartTime string
	EndTime   string
}

// HasWindow reports whether both ends of an explicit time window were given.
func (f ReadingFilter) HasWindow() bool {
	return f.StartTime != "" && f.EndTime != ""
}
