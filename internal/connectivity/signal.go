package connectivity

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Signal reports current network reachability.
type Signal interface {
	Online(ctx context.Context) bool
}

// Static is a Signal with a fixed answer.
type Static bool

func (s Static) Online(context.Context) bool {
	return bool(s)
}

// Probe reports online when an HTTP request to a URL gets any response.
// An empty URL is always online.
type Probe struct {
	url     string
	client  *http.Client
	timeout time.Duration
	last    atomic.Bool
}

// NewProbe builds a Probe. A nil client uses a default client.
func NewProbe(url string, timeout time.Duration, client *http.Client) *Probe {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Probe{url: strings.TrimSpace(url), client: client, timeout: timeout}
}

// URL returns the probed address.
func (p *Probe) URL() string {
	return p.url
}

// Online performs one probe request.
func (p *Probe) Online(ctx context.Context) bool {
	online := p.check(ctx) == nil
	p.last.Store(online)
	return online
}

// Check performs one probe and returns the failure, if any.
func (p *Probe) Check(ctx context.Context) error {
	err := p.check(ctx)
	p.last.Store(err == nil)
	return err
}

// Last returns the result of the most recent probe.
func (p *Probe) Last() bool {
	return p.last.Load()
}

func (p *Probe) check(ctx context.Context) error {
	if p.url == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
