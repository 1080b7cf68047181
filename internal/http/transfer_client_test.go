package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/logging"
)

func TestWrapClient_SingleAttemptOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	rc := WrapClient(srv.Client(), nil)
	req, err := retryablehttp.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/f.zip", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := rc.Do(req)
	if err != nil {
		t.Fatalf("expected the 502 response to be passed through, got error %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected exactly one attempt, got %d", n)
	}
}

func TestWrapClient_BodyIntact(t *testing.T) {
	payload := strings.Repeat("payload", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := logging.NewLogger(logging.ModeJSON, &logs)

	rc := WrapClient(srv.Client(), logger)
	resp, err := rc.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != payload {
		t.Errorf("body length %d, want %d", len(body), len(payload))
	}
}

func TestWrapClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := WrapClient(srv.Client(), nil)
	req, _ := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if _, err := rc.Do(req); err == nil {
		t.Fatal("expected error for cancelled context")
	} else if ClassifyError(err) != ErrorTypeCancelled {
		t.Errorf("expected cancelled classification, got %s (%v)", ClassifyError(err), err)
	}
}

func TestNewTransferClient(t *testing.T) {
	rc, err := NewTransferClient(&config.Config{ProxyMode: "no-proxy"}, nil)
	if err != nil {
		t.Fatalf("NewTransferClient: %v", err)
	}
	if rc.RetryMax != 0 {
		t.Errorf("RetryMax = %d, want 0", rc.RetryMax)
	}
	tr, ok := rc.HTTPClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", rc.HTTPClient.Transport)
	}
	if !tr.DisableCompression {
		t.Error("transparent decompression must be disabled")
	}

	if _, err := NewTransferClient(&config.Config{ProxyMode: "bogus"}, nil); err == nil {
		t.Error("expected error for unknown proxy mode")
	}
}
