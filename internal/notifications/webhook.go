package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kjannette/papertrade-backend/internal/httputil"
	"github.com/kjannette/papertrade-backend/internal/logging"
)

const (
	DefaultName = "PaperTrader"
	queueSize   = 64
)

// Sender posts trade and account events to a Slack or Discord webhook.
// Delivery happens on a background goroutine so callers never wait on
// the network. Close flushes pending messages.
type Sender struct {
	webhookURL string
	name       string
	httpClient *http.Client
	retry      httputil.RetryConfig

	mu        sync.RWMutex
	closed    bool
	queue     chan string
	startOnce sync.Once
	done      chan struct{}
}

func NewSender(webhookURL, name string) *Sender {
	if name == "" {
		name = DefaultName
	}
	return &Sender{
		webhookURL: webhookURL,
		name:       name,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		queue: make(chan string, queueSize),
		done:  make(chan struct{}),
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

// Send logs msg and queues it for the webhook. When the queue is full the
// message is dropped with a warning.
func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.name, msg)
	log := logging.For("notify")
	log.Info(formatted)

	if !s.Enabled() {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.startOnce.Do(func() { go s.run() })

	select {
	case s.queue <- formatted:
	default:
		log.Warn("Notification queue full, dropping message")
	}
}

// Close stops accepting messages and waits until queued ones are delivered.
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.startOnce.Do(func() { close(s.done) })
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *Sender) run() {
	defer close(s.done)
	for msg := range s.queue {
		s.deliver(msg)
	}
}

func (s *Sender) deliver(msg string) {
	body, err := json.Marshal(s.formatPayload(msg))
	if err != nil {
		logging.For("notify").Errorf("marshal: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		logging.For("notify").Errorf("Failed to send notification after retries: %v", err)
		return
	}
	resp.Body.Close()
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.name,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.name,
	}
}
