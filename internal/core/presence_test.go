package core

import (
	"testing"
	"time"
)

func TestPresence(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}

	tests := []struct {
		name     string
		lastSeen *time.Time
		online   bool
		label    string
	}{
		{"never", nil, false, "nunca visto"},
		{"just now", at(10 * time.Second), true, "online"},
		{"inside window", at(4*time.Minute + 59*time.Second), true, "online"},
		{"window edge", at(5 * time.Minute), false, "visto há 5 minutos"},
		{"one hour", at(time.Hour + 10*time.Minute), false, "visto há 1 hora"},
		{"hours", at(5 * time.Hour), false, "visto há 5 horas"},
		{"one day", at(30 * time.Hour), false, "visto há 1 dia"},
		{"days", at(72 * time.Hour), false, "visto há 3 dias"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Presence(tt.lastSeen, now)
			if got.Online != tt.online || got.Label != tt.label {
				t.Fatalf("Presence = %+v, want online=%v label=%q", got, tt.online, tt.label)
			}
		})
	}
}
