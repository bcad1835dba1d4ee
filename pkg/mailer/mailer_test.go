package mailer

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestSendRequiresConfiguration(t *testing.T) {
	m := New(Config{Host: "smtp.mailtrap.io", Port: "2525"})
	if err := m.Send("ops@example.com", "subject", "body"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendBuildsMessage(t *testing.T) {
	m := New(Config{Host: "smtp.mailtrap.io", Port: "2525", Username: "u", Password: "p", From: "alerts@example.com"})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := m.Send("ops@example.com", "Checkout failed", "<p>tx-1</p>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.mailtrap.io:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{"Subject: Checkout failed\r\n", "From: alerts@example.com\r\n", "Content-Type: text/html"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSendWrapsTransportError(t *testing.T) {
	m := New(Config{Host: "h", Port: "25", Username: "u", Password: "p", From: "f@example.com"})
	boom := errors.New("connection refused")
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := m.Send("ops@example.com", "s", "plain"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
}
