package upstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/keyproxy/internal/secret"
)

func testKey(t *testing.T, v string) *secret.Buffer {
	t.Helper()
	b, err := secret.NewFromBytes([]byte(v))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestForwardInjectsKeyAndStripsClientAuth(t *testing.T) {
	var got *http.Request
	var gotBody string
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer up.Close()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer tok1")
	hdr.Set("x-goog-api-key", "tok1")
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Connection", "close")

	body := `{"model":"gpt"}`
	rec := httptest.NewRecorder()
	status, err := NewHTTPForwarder(nil, nil).Forward(context.Background(), rec, &ForwardRequest{
		Vendor:        Vendor{Name: "openai", BaseURL: up.URL + "/v1", AuthHeader: "Authorization", AuthScheme: "Bearer"},
		Key:           testKey(t, "sk-1"),
		Path:          "/chat/completions?a=1&b=2",
		Method:        http.MethodPost,
		Header:        hdr,
		Body:          strings.NewReader(body),
		ContentLength: int64(len(body)),
	})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if status != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("status = %d / %d, want 418", status, rec.Code)
	}
	if rec.Body.String() != `{"ok":true}` || rec.Header().Get("X-Upstream") != "yes" {
		t.Errorf("response not relayed verbatim: %q %v", rec.Body.String(), rec.Header())
	}

	if got.URL.Path != "/v1/chat/completions" || got.URL.RawQuery != "a=1&b=2" {
		t.Errorf("upstream url = %s", got.URL.String())
	}
	if got.Header.Get("Authorization") != "Bearer sk-1" {
		t.Errorf("Authorization = %q", got.Header.Get("Authorization"))
	}
	if got.Header.Get("x-goog-api-key") != "" {
		t.Error("client credential header leaked upstream")
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Error("content headers should pass through")
	}
	if gotBody != body {
		t.Errorf("body = %q", gotBody)
	}
}

func TestForwardRawHeaderVendor(t *testing.T) {
	var gotKey, gotVersion, gotAuth string
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		gotAuth = r.Header.Get("Authorization")
	}))
	defer up.Close()

	v := DefaultVendors()["anthropic"]
	v.BaseURL = up.URL

	hdr := http.Header{}
	hdr.Set("x-api-key", "tok1")
	_, err := NewHTTPForwarder(nil, nil).Forward(context.Background(), httptest.NewRecorder(), &ForwardRequest{
		Vendor: v,
		Key:    testKey(t, "sk-ant"),
		Path:   "/v1/messages",
		Method: http.MethodPost,
		Header: hdr,
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "sk-ant" || gotAuth != "" {
		t.Errorf("x-api-key = %q, Authorization = %q", gotKey, gotAuth)
	}
	if gotVersion != "2023-06-01" {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
}

func TestForwardStreamsSSE(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, ev := range []string{"one", "two", "three"} {
			io.WriteString(w, "data: "+ev+"\n\n")
			fl.Flush()
		}
	}))
	defer up.Close()

	f := NewHTTPForwarder(nil, nil)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := f.Forward(r.Context(), w, &ForwardRequest{
			Vendor: Vendor{Name: "google", BaseURL: up.URL, AuthHeader: "x-goog-api-key"},
			Key:    testKey(t, "g-1"),
			Path:   "/models/x:streamGenerateContent?alt=sse",
			Method: http.MethodPost,
			Header: r.Header,
		})
		if err != nil {
			t.Error(err)
		}
	}))
	defer front.Close()

	resp, err := http.Post(front.URL, "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	var events []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	if strings.Join(events, ",") != "one,two,three" {
		t.Errorf("events = %v", events)
	}
}

func TestForwardUpstreamUnreachable(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	base := up.URL
	up.Close()

	rec := httptest.NewRecorder()
	_, err := NewHTTPForwarder(nil, nil).Forward(context.Background(), rec, &ForwardRequest{
		Vendor: Vendor{Name: "openai", BaseURL: base, AuthHeader: "Authorization", AuthScheme: "Bearer"},
		Key:    testKey(t, "sk-1"),
		Path:   "/",
		Method: http.MethodGet,
		Header: http.Header{},
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Error("nothing should be written on failure")
	}
}

func TestForwardCancelledContext(t *testing.T) {
	block := make(chan struct{})
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer up.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPForwarder(nil, nil).Forward(ctx, httptest.NewRecorder(), &ForwardRequest{
		Vendor: Vendor{Name: "openai", BaseURL: up.URL, AuthHeader: "Authorization"},
		Key:    testKey(t, "sk-1"),
		Path:   "/",
		Method: http.MethodGet,
		Header: http.Header{},
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream for cancelled context, got %v", err)
	}
}
