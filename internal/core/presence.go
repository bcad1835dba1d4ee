package core

import (
	"fmt"
	"time"
)

// OnlineWindow is how recent a heartbeat must be to count as online.
const OnlineWindow = 5 * time.Minute

// PresenceInfo is the derived online state of a user.
type PresenceInfo struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
	Label    string     `json:"label"`
}

// Presence derives the presence of a user from the stored heartbeat.
func Presence(lastSeen *time.Time, now time.Time) PresenceInfo {
	if lastSeen == nil || lastSeen.IsZero() {
		return PresenceInfo{Label: "nunca visto"}
	}
	ago := now.Sub(*lastSeen)
	if ago < OnlineWindow {
		return PresenceInfo{Online: true, LastSeen: lastSeen, Label: "online"}
	}
	return PresenceInfo{LastSeen: lastSeen, Label: lastSeenLabel(ago)}
}

func lastSeenLabel(ago time.Duration) string {
	switch {
	case ago < time.Hour:
		return plural(int(ago/time.Minute), "minuto", "minutos")
	case ago < 24*time.Hour:
		return plural(int(ago/time.Hour), "hora", "horas")
	default:
		return plural(int(ago/(24*time.Hour)), "dia", "dias")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("visto há 1 %s", one)
	}
	return fmt.Sprintf("visto há %d %s", n, many)
}
