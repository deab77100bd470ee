package httptransport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"xdao.co/in3/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// httptest servers and keep-alive conns are closed per test, but the
		// default transport may still hold idle readers briefly.
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)
}

func echoServer(t *testing.T, delay time.Duration, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			http.Error(w, "content type "+ct, http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, r.Body)
		time.Sleep(delay)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTransport(opts Options) *Transport {
	opts.Client = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	return New(opts)
}

func TestFetch_IndexAlignedUnderOutOfOrderCompletion(t *testing.T) {
	slow := echoServer(t, 80*time.Millisecond, `"slow"`)
	fast := echoServer(t, 0, `"fast"`)

	tr := newTransport(Options{})
	got := tr.Fetch(context.Background(), []byte(`{}`), []string{slow.URL, fast.URL})
	want := []transport.Response{transport.OK(`"slow"`), transport.OK(`"fast"`)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("responses (-want +got):\n%s", diff)
	}
}

func TestFetch_PerTargetFailureDoesNotAbortOthers(t *testing.T) {
	ok := echoServer(t, 20*time.Millisecond, `"0x2a"`)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "node overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(bad.Close)

	tr := newTransport(Options{})
	got := tr.Fetch(context.Background(), []byte(`{}`), []string{bad.URL, ok.URL})
	if len(got) != 2 {
		t.Fatalf("len: got %d want 2", len(got))
	}
	if !got[0].Failed() || got[0].Err != "http 503: node overloaded" {
		t.Fatalf("slot 0: got %+v", got[0])
	}
	if got[1] != transport.OK(`"0x2a"`) {
		t.Fatalf("slot 1: got %+v", got[1])
	}
}

func TestFetch_UnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := newTransport(Options{Timeout: time.Second})
	got := tr.Fetch(context.Background(), []byte(`{}`), []string{url})
	if !got[0].Failed() || !strings.Contains(got[0].Err, "connect") {
		t.Fatalf("expected connection error, got %+v", got[0])
	}
}

func TestFetch_ResponseTooLarge(t *testing.T) {
	srv := echoServer(t, 0, strings.Repeat("a", 64))
	tr := newTransport(Options{MaxResponseBytes: 16})
	got := tr.Fetch(context.Background(), []byte(`{}`), []string{srv.URL})
	if !got[0].Failed() || !strings.Contains(got[0].Err, "exceeds 16 bytes") {
		t.Fatalf("got %+v", got[0])
	}
}

func TestFetch_TimeoutIsPerTarget(t *testing.T) {
	slow := echoServer(t, 300*time.Millisecond, `"late"`)
	fast := echoServer(t, 0, `"ok"`)
	tr := newTransport(Options{Timeout: 50 * time.Millisecond})
	got := tr.Fetch(context.Background(), []byte(`{}`), []string{slow.URL, fast.URL})
	if !got[0].Failed() {
		t.Fatalf("slow target should time out, got %+v", got[0])
	}
	if got[1] != transport.OK(`"ok"`) {
		t.Fatalf("fast target: got %+v", got[1])
	}
}

func TestFetch_ConcurrencyLimitStillCoversAllTargets(t *testing.T) {
	srv := echoServer(t, 5*time.Millisecond, `"x"`)
	targets := make([]string, 7)
	for i := range targets {
		targets[i] = srv.URL
	}
	tr := newTransport(Options{MaxConcurrency: 2})
	got := tr.Fetch(context.Background(), []byte(`{}`), targets)
	for i, r := range got {
		if r != transport.OK(`"x"`) {
			t.Fatalf("slot %d: %+v", i, r)
		}
	}
}

func TestFetch_EmptyTargets(t *testing.T) {
	tr := newTransport(Options{})
	if got := tr.Fetch(context.Background(), []byte(`{}`), nil); len(got) != 0 {
		t.Fatalf("expected no responses, got %d", len(got))
	}
}
