// Package testutil provides fake Craft and completion servers for tests.
package testutil

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// CreateCall is one POST /blocks received by FakeCraft.
type CreateCall struct {
	Markdown string
	Date     string
	Auth     string
}

// FakeCraft serves GET /blocks?date= and POST /blocks under any path prefix.
type FakeCraft struct {
	Server *httptest.Server

	mu sync.Mutex
	// Notes maps a date to the JSON block returned for it. Dates absent
	// from the map get a 404.
	Notes map[string]any
	// FailDates maps a date to a status returned instead of its note.
	FailDates map[string]int
	// Delays holds a date's GET response back for the given duration.
	Delays map[string]time.Duration
	// CreateStatuses is consumed one per POST; when exhausted, 200 is used.
	CreateStatuses []int
	// CreateBody is the JSON returned for a successful POST.
	CreateBody string
	// Token, when set, must be presented as a Bearer token.
	Token string

	Gets    []string
	Creates []CreateCall
}

// stall waits for d or until the client goes away.
func stall(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (f *FakeCraft) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		f.mu.Lock()
		delay := f.Delays[r.URL.Query().Get("date")]
		f.mu.Unlock()
		stall(r.Context(), delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/blocks") {
		http.NotFound(w, r)
		return
	}
	auth := r.Header.Get("Authorization")
	if f.Token != "" && auth != "Bearer "+f.Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		date := r.URL.Query().Get("date")
		f.Gets = append(f.Gets, date)
		if status, ok := f.FailDates[date]; ok {
			w.WriteHeader(status)
			return
		}
		note, ok := f.Notes[date]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(note)

	case http.MethodPost:
		var body struct {
			Markdown string `json:"markdown"`
			Position *struct {
				Position string `json:"position"`
				Date     string `json:"date"`
			} `json:"position"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		call := CreateCall{Markdown: body.Markdown, Auth: auth}
		if body.Position != nil {
			call.Date = body.Position.Date
		}
		f.Creates = append(f.Creates, call)

		status := http.StatusOK
		if len(f.CreateStatuses) > 0 {
			status = f.CreateStatuses[0]
			f.CreateStatuses = f.CreateStatuses[1:]
		}
		if status < 200 || status > 299 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"placement failed"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.CreateBody))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Snapshot returns copies of the recorded GET dates and POST calls.
func (f *FakeCraft) Snapshot() ([]string, []CreateCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Gets...), append([]CreateCall(nil), f.Creates...)
}

// NewFakeCraft starts a plain HTTP fake. Use APIBase as the base URL.
func NewFakeCraft(t *testing.T) *FakeCraft {
	t.Helper()
	f := &FakeCraft{
		Notes:      map[string]any{},
		FailDates:  map[string]int{},
		Delays:     map[string]time.Duration{},
		CreateBody: `{"items":[{"id":"block-1"}]}`,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// NewFakeCraftTLS starts a TLS fake reachable under any https host through
// the client returned by Client.
func NewFakeCraftTLS(t *testing.T) *FakeCraft {
	t.Helper()
	f := &FakeCraft{
		Notes:      map[string]any{},
		FailDates:  map[string]int{},
		Delays:     map[string]time.Duration{},
		CreateBody: `{"items":[{"id":"block-1"}]}`,
	}
	f.Server = httptest.NewTLSServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// APIBase returns the fake's base URL shaped like a Craft Connect API base.
func (f *FakeCraft) APIBase() string {
	return f.Server.URL + "/links/test/api/v1"
}

// Client returns an HTTP client that sends every request, whatever its
// host, to the fake server. For TLS fakes the certificate is trusted.
func (f *FakeCraft) Client() *http.Client {
	base := f.Server.Client()
	tr, ok := base.Transport.(*http.Transport)
	if !ok {
		tr = &http.Transport{}
	} else {
		tr = tr.Clone()
	}
	addr := f.Server.Listener.Addr().String()
	var d net.Dialer
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return d.DialContext(ctx, network, addr)
	}
	if tr.TLSClientConfig != nil {
		cfg := tr.TLSClientConfig.Clone()
		// httptest certificates are issued for example.com.
		cfg.ServerName = "example.com"
		tr.TLSClientConfig = cfg
	} else {
		tr.TLSClientConfig = &tls.Config{ServerName: "example.com"}
	}
	return &http.Client{Transport: tr, Timeout: base.Timeout}
}

// Block builds a JSON block with optional children.
func Block(id, markdown string, children ...map[string]any) map[string]any {
	b := map[string]any{"id": id, "markdown": markdown}
	if len(children) > 0 {
		content := make([]any, len(children))
		for i, c := range children {
			content[i] = c
		}
		b["content"] = content
	}
	return b
}

// CompletionCall is one request received by FakeAI.
type CompletionCall struct {
	Auth     string
	Model    string
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
}

// FakeAI serves POST /chat/completions.
type FakeAI struct {
	Server *httptest.Server

	mu sync.Mutex
	// Status is returned for every call; 0 means 200.
	Status int
	// Body overrides the JSON response when set.
	Body string
	// Reply is the completion text used when Body is empty.
	Reply string
	// Delay holds every response back for the given duration.
	Delay time.Duration

	Calls []CompletionCall
}

// NewFakeAI starts a fake completion gateway. Use BaseURL as the base URL.
func NewFakeAI(t *testing.T) *FakeAI {
	t.Helper()
	f := &FakeAI{Reply: "# Weekly Brain Reset\n\n## 🎯 Key Themes\n- shipping"}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delay := f.Delay
		f.mu.Unlock()
		stall(r.Context(), delay)

		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var call CompletionCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		call.Auth = r.Header.Get("Authorization")
		f.Calls = append(f.Calls, call)

		if f.Status != 0 && f.Status != http.StatusOK {
			w.WriteHeader(f.Status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if f.Body != "" {
			_, _ = w.Write([]byte(f.Body))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": f.Reply}},
			},
		})
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL returns the gateway base URL (without /chat/completions).
func (f *FakeAI) BaseURL() string {
	return f.Server.URL + "/v1"
}

// CallCount returns the number of completion requests received.
func (f *FakeAI) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent completion request.
func (f *FakeAI) LastCall() CompletionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return CompletionCall{}
	}
	return f.Calls[len(f.Calls)-1]
}
