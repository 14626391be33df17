package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Put(t *testing.T) {
	var gotPath, gotAuth, gotType, gotHash, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotHash = r.Header.Get("X-Content-Sha256")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/docs/", "secret")
	err := c.Put(context.Background(), Object{
		Key:         "2026/my file.md",
		ContentType: "text/markdown",
		Body:        []byte("# hi\n"),
		ContentHash: "abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/docs/2026/my%20file.md" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" || gotType != "text/markdown" || gotHash != "abc" {
		t.Errorf("unexpected headers auth=%q type=%q hash=%q", gotAuth, gotType, gotHash)
	}
	if gotBody != "# hi\n" {
		t.Errorf("unexpected body %q", gotBody)
	}
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNoContent, false, false},
		{http.StatusBadRequest, true, false},
		{http.StatusForbidden, true, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusBadGateway, true, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		err := NewClient(srv.URL, "").Put(context.Background(), Object{Key: "a.md"})
		srv.Close()

		if (err != nil) != tt.wantErr {
			t.Errorf("status %d: unexpected error %v", tt.status, err)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, IsRetryable(err), tt.retryable)
		}
	}
}

func TestClient_DeleteMissingIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "").Delete(context.Background(), "gone.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_InvalidKeys(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	for _, key := range []string{"", "/abs", "a/../b", "a//b", "."} {
		if err := c.Put(context.Background(), Object{Key: key}); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
	if d := Backoff(10); d < 30*time.Second || d >= 45*time.Second {
		t.Errorf("expected capped backoff, got %v", d)
	}
}

func TestRetryableError_Message(t *testing.T) {
	err := error(&RetryableError{StatusCode: 503, Message: "busy"})
	if err.Error() != "retryable error (status 503): busy" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !IsRetryable(errors.Join(errors.New("wrap"), err)) {
		t.Error("expected wrapped error to be retryable")
	}
}
