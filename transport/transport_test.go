package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/dommirror/mutation"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeReplicas struct {
	mu     sync.Mutex
	got    []mutation.Envelope
	fail   error
	failAt int
	markup map[string]string
}

func (f *fakeReplicas) Deliver(_ context.Context, env mutation.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil && len(f.got) == f.failAt {
		return f.fail
	}
	f.got = append(f.got, env)
	return nil
}

func (f *fakeReplicas) delivered() []mutation.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mutation.Envelope(nil), f.got...)
}

func (f *fakeReplicas) Markup(root string) (string, error) {
	m, ok := f.markup[root]
	if !ok {
		return "", ErrUnknownRoot
	}
	return m, nil
}

func record(prop string) mutation.Envelope {
	return mutation.Envelope{
		Type:   mutation.TypeRecord,
		Record: &mutation.Record{TargetPath: mutation.Address{mutation.Index(0)}, Prop: mutation.OpPath{prop}, Args: []mutation.Arg{}},
	}
}

func jsonLines(t *testing.T, envs ...mutation.Envelope) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range envs {
		if err := enc.Encode(e); err != nil {
			t.Fatal(err)
		}
	}
	return &buf
}

func serve(t *testing.T, reps Replicas, cfg ReceiverConfig) *httptest.Server {
	t.Helper()
	cfg.Logger = quiet()
	srv := httptest.NewServer(NewReceiver(reps, cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestReceiver_RecordsInOrder(t *testing.T) {
	reps := &fakeReplicas{}
	srv := serve(t, reps, ReceiverConfig{})

	resp, err := http.Post(srv.URL+"/roots/page-1/records", "application/json", jsonLines(t, record("remove"), record("normalize")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["applied"] != 2.0 {
		t.Errorf("applied: got %v, want 2", body["applied"])
	}
	var props []string
	for _, e := range reps.delivered() {
		if e.Root != "page-1" {
			t.Errorf("root: got %q, want %q", e.Root, "page-1")
		}
		props = append(props, e.Record.Prop[0])
	}
	if diff := cmp.Diff([]string{"remove", "normalize"}, props); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestReceiver_StopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name   string
		fail   error
		status int
	}{
		{"diverged", errors.New("address: unresolvable path"), http.StatusConflict},
		{"unknown root", ErrUnknownRoot, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reps := &fakeReplicas{fail: tt.fail, failAt: 1}
			srv := serve(t, reps, ReceiverConfig{})
			resp, err := http.Post(srv.URL+"/roots/r/records", "application/json",
				jsonLines(t, record("a"), record("b"), record("c")))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.status)
			}
			if body := decodeBody(t, resp); body["applied"] != 1.0 {
				t.Errorf("applied: got %v, want 1", body["applied"])
			}
			if len(reps.delivered()) != 1 {
				t.Errorf("delivered: got %d, want 1", len(reps.delivered()))
			}
		})
	}
}

func TestReceiver_RejectsBadInput(t *testing.T) {
	reps := &fakeReplicas{}
	srv := serve(t, reps, ReceiverConfig{})
	small := serve(t, reps, ReceiverConfig{MaxBody: 64})

	other := record("x")
	other.Root = "other"
	tests := []struct {
		name   string
		url    string
		path   string
		body   io.Reader
		status int
	}{
		{"root mismatch", srv.URL, "/roots/r/records", jsonLines(t, other), http.StatusBadRequest},
		{"malformed", srv.URL, "/roots/r/records", strings.NewReader(`{"type":"record"}`), http.StatusBadRequest},
		{"invalid root", srv.URL, "/roots/a!b/records", jsonLines(t, record("x")), http.StatusBadRequest},
		{"too large", small.URL, "/roots/r/records", strings.NewReader(`{"type":"record","root":"r","record":{"targetPath":[],"prop":"` + strings.Repeat("x", 100) + `","args":[]}}`), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(tt.url+tt.path, "application/json", tt.body)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
	if len(reps.delivered()) != 0 {
		t.Errorf("delivered: got %d, want 0", len(reps.delivered()))
	}
}

func TestReceiver_Snapshot(t *testing.T) {
	reps := &fakeReplicas{}
	srv := serve(t, reps, ReceiverConfig{})

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/roots/r/snapshot", strings.NewReader(`["DocumentFragment",[["Text","hi"]]]`))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	got := reps.delivered()
	if len(got) != 1 || got[0].Type != mutation.TypeSnapshot {
		t.Fatalf("delivered: got %+v", got)
	}
	want := mutation.FragmentSnapshot{Children: []mutation.Snapshot{mutation.TextSnapshot{Data: "hi"}}}
	if diff := cmp.Diff(want, got[0].Snapshot); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}
}

func TestReceiver_View(t *testing.T) {
	reps := &fakeReplicas{markup: map[string]string{
		"r": `<p onclick="steal()">hi</p><script>alert(1)</script>`,
	}}
	srv := serve(t, reps, ReceiverConfig{Sanitize: true})

	resp, err := http.Get(srv.URL + "/roots/r")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "script") || strings.Contains(string(body), "onclick") {
		t.Errorf("view not sanitised: %s", body)
	}
	if !strings.Contains(string(body), "<p>hi</p>") {
		t.Errorf("view: got %s", body)
	}
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'none'") {
		t.Errorf("CSP: got %q", csp)
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Error("missing X-Trace-ID")
	}

	resp, err = http.Get(srv.URL + "/roots/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown root: got %d, want 404", resp.StatusCode)
	}
}

func TestReceiver_Health(t *testing.T) {
	srv := serve(t, &fakeReplicas{}, ReceiverConfig{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if body := decodeBody(t, resp); body["status"] != "ok" {
		t.Errorf("health: got %v", body)
	}
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL+"/roots/{root}/records", WithWebhookBackoff(time.Millisecond), WithWebhookLogger(quiet()))
	env := record("remove")
	env.Root = "r1"
	if err := wh.Send(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts: got %d, want 2", got)
	}
	if got := path.Load(); got != "/roots/r1/records" {
		t.Errorf("path: got %v, want /roots/r1/records", got)
	}
}

func TestWebhook_DoesNotRetryRejections(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond), WithWebhookLogger(quiet()))
	if err := wh.Send(context.Background(), record("remove")); err == nil {
		t.Fatal("expected an error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts: got %d, want 1", got)
	}
}

type countingSink struct {
	n   int
	err error
}

func (s *countingSink) Send(context.Context, mutation.Envelope) error {
	s.n++
	return s.err
}

func (s *countingSink) Close() error { return nil }

func TestRouter_FanOut(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{err: boom}, &countingSink{}
	r := NewRouter(quiet(), a, b)
	if err := r.Send(context.Background(), record("x")); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if a.n != 1 || b.n != 1 {
		t.Errorf("sends: got %d and %d, want 1 and 1", a.n, b.n)
	}
}

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	env := record("remove")
	env.Root = "r"
	if err := s.Send(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\n") {
		t.Fatalf("expected one line, got %q", line)
	}
	got, err := mutation.UnmarshalEnvelope([]byte(line))
	if err != nil {
		t.Fatal(err)
	}
	if got.Root != "r" || got.Record.Prop[0] != "remove" {
		t.Errorf("decoded: got %+v", got)
	}
}

func TestCallback(t *testing.T) {
	var got mutation.Envelope
	c := NewCallback(func(_ context.Context, env mutation.Envelope) error {
		got = env
		return nil
	})
	if err := c.Send(context.Background(), record("x")); err != nil {
		t.Fatal(err)
	}
	if got.Type != mutation.TypeRecord {
		t.Errorf("type: got %q", got.Type)
	}
	if err := NewCallback(nil).Send(context.Background(), record("x")); err != nil {
		t.Errorf("nil callback: %v", err)
	}
}
