package domain

// Level grades a notification for client-side presentation.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
)

// Notification is the payload fanned out to live connections. Immutable
// once built; every recipient of an event receives the identical payload.
// Field names match the wire format consumed by the frontend.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Level   Level  `json:"level"`
}

// BroadcastGroup is the well-known delivery group every authenticated
// connection joins for its whole lifetime.
const BroadcastGroup = "broadcast"

// UserGroup returns the personal delivery group for a user.
func UserGroup(userID string) string {
	return "user:" + userID
}
