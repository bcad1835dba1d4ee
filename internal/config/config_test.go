package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("ENCRYPTION_KEY", validKey())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.PaymentPollInterval != 5*time.Second {
		t.Errorf("PaymentPollInterval = %v, want 5s", cfg.PaymentPollInterval)
	}
	if cfg.WhatsappConnectTimeout != 60*time.Second {
		t.Errorf("WhatsappConnectTimeout = %v, want 60s", cfg.WhatsappConnectTimeout)
	}
	if cfg.NotifierMaxAttempts != 5 {
		t.Errorf("NotifierMaxAttempts = %d, want 5", cfg.NotifierMaxAttempts)
	}
	if cfg.NotificationDLQName != "whatsapp_notifications_dlq" {
		t.Errorf("NotificationDLQName = %q", cfg.NotificationDLQName)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("ENCRYPTION_KEY", validKey())
	t.Setenv("PAYMENT_POLL_INTERVAL", "250ms")
	t.Setenv("NOTIFIER_EMBEDDED", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PaymentPollInterval != 250*time.Millisecond {
		t.Errorf("PaymentPollInterval = %v, want 250ms", cfg.PaymentPollInterval)
	}
	if !cfg.NotifierEmbedded {
		t.Error("NotifierEmbedded = false, want true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing project", Config{EncryptionKey: validKey(), NotifierMaxAttempts: 1}, "FIREBASE_PROJECT_ID"},
		{"missing key", Config{FirebaseProjectID: "p", NotifierMaxAttempts: 1}, "ENCRYPTION_KEY is required"},
		{"short key", Config{FirebaseProjectID: "p", EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short")), NotifierMaxAttempts: 1}, "32 bytes"},
		{"bad attempts", Config{FirebaseProjectID: "p", EncryptionKey: validKey()}, "NOTIFIER_MAX_ATTEMPTS"},
		{"ok", Config{FirebaseProjectID: "p", EncryptionKey: validKey(), NotifierMaxAttempts: 3}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
