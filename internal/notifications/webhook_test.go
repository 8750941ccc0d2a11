package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capture struct {
	mu       sync.Mutex
	payloads []map[string]string
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p map[string]string
		json.Unmarshal(body, &p)
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestTrader")
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	s.Send("hello from test")
	s.Close()
}

func TestSend_SlackFormat(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	s := NewSender(srv.URL, "TestTrader")
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}
	s.Send("[IN] BUY 10 TCS.NS @ ₹3,500")
	s.Close()

	if len(c.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(c.payloads))
	}
	got := c.payloads[0]
	if got["username"] != "TestTrader" {
		t.Fatalf("username: got %s", got["username"])
	}
	if got["text"] != "`[TestTrader] [IN] BUY 10 TCS.NS @ ₹3,500`" {
		t.Fatalf("text: got %q", got["text"])
	}
}

func TestSend_DiscordFormat(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "PaperBot")
	s.Send("[US] Account reset")
	s.Close()

	if len(c.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(c.payloads))
	}
	got := c.payloads[0]
	if got["content"] == "" {
		t.Fatal("content should not be empty for Discord")
	}
	if _, hasText := got["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestSend_PreservesOrder(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler())
	defer srv.Close()

	s := NewSender(srv.URL+"/discord", "Bot")
	for _, m := range []string{"one", "two", "three"} {
		s.Send(m)
	}
	s.Close()

	if len(c.payloads) != 3 || c.payloads[2]["content"] != "[Bot] three" {
		t.Fatalf("unexpected payloads: %+v", c.payloads)
	}
}

func TestSend_DoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := NewSender(srv.URL, "Bot")
	start := time.Now()
	s.Send("slow upstream")
	if time.Since(start) > time.Second {
		t.Fatal("Send should return before the webhook responds")
	}
}

func TestSend_WebhookError(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestTrader")
	s.retry.BaseDelay = time.Millisecond
	s.retry.MaxDelay = time.Millisecond
	s.Send("this will fail gracefully")
	s.Close()
}

func TestClose_Idempotent(t *testing.T) {
	s := NewSender("http://localhost:1", "Bot")
	s.Close()
	s.Close()
}

func TestDefaultName(t *testing.T) {
	s := NewSender("", "")
	if s.name != DefaultName {
		t.Fatalf("expected default name, got %s", s.name)
	}
}
