package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/leadscout/internal/config"
)

func TestNew_Drivers(t *testing.T) {
	if m, err := New(config.MailConfig{Driver: "log"}, nil); err != nil || m == nil {
		t.Fatalf("log driver: %v", err)
	}
	m, err := New(config.MailConfig{Driver: "smtp", Host: "localhost", Port: 25, From: "a@b.c"}, nil)
	if err != nil {
		t.Fatalf("smtp driver: %v", err)
	}
	if _, ok := m.(*SMTPMailer); !ok {
		t.Fatalf("expected SMTPMailer, got %T", m)
	}
	if _, err := New(config.MailConfig{Driver: "fax"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		if a == nil {
			t.Errorf("expected auth to be configured")
		}
		return nil
	}

	if err := m.Send(context.Background(), "bob@example.com", "Your code", "Code: 123456\nBye"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "bob@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{"Subject: Your code\r\n", "To: bob@example.com\r\n", "Code: 123456\r\nBye"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSMTPMailer_RejectsHeaderInjection(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "h", Port: 25, From: "f@example.com"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatalf("send must not be called")
		return nil
	}
	if err := m.Send(context.Background(), "a@example.com\r\nBcc: x@example.com", "s", "b"); err == nil {
		t.Fatalf("expected error for header injection")
	}
}

func TestSMTPMailer_ContextCancel(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "h", Port: 25, From: "f@example.com"})
	release := make(chan struct{})
	defer close(release)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Send(ctx, "a@example.com", "s", "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	if _, ok := r.Last(); ok {
		t.Fatalf("empty recorder must have no last message")
	}
	_ = r.Send(context.Background(), "a@example.com", "s1", "b1")
	_ = r.Send(context.Background(), "b@example.com", "s2", "b2")
	last, ok := r.Last()
	if !ok || last.To != "b@example.com" || len(r.Sent()) != 2 {
		t.Fatalf("unexpected recorder state: %#v", r.Sent())
	}

	r.Err = errors.New("down")
	if err := r.Send(context.Background(), "c@example.com", "s", "b"); err == nil {
		t.Fatalf("expected configured error")
	}
	if len(r.Sent()) != 2 {
		t.Fatalf("failed sends must not be recorded")
	}
}
