package llmverify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/infra/openai"
)

func newTestClient(t *testing.T, body string, status int) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return openai.NewClient("", srv.URL, 5*time.Second)
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestVerifyDisabledReturnsKindsUnchanged(t *testing.T) {
	v := New(nil, "model", false, noopLogger())
	kinds := []domain.ThreatKind{domain.ThreatShahed}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityCity, false)
	if len(got) != 1 || got[0] != domain.ThreatShahed {
		t.Fatalf("expected kinds unchanged when disabled, got %v", got)
	}
}

func TestVerifyEmptyKindsSkipsCall(t *testing.T) {
	v := New(nil, "model", true, noopLogger())
	got := v.Verify(context.Background(), "text", nil, domain.ProximityNone, false)
	if got != nil {
		t.Fatalf("expected nil for empty input kinds, got %v", got)
	}
}

func TestVerifyNarrowsToConfirmedThreats(t *testing.T) {
	client := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"{\"threats\":[\"Shahed\"],\"reasoning\":[\"active\"]}"}}]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatShahed, domain.ThreatBallistic}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityCity, false)
	if len(got) != 1 || got[0] != domain.ThreatShahed {
		t.Fatalf("expected only Shahed confirmed, got %v", got)
	}
}

func TestVerifyEmptyThreatsListSuppresses(t *testing.T) {
	client := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"{\"threats\":[],\"reasoning\":[\"recap\"]}"}}]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	got := v.Verify(context.Background(), "text", []domain.ThreatKind{domain.ThreatShahed}, domain.ProximityNone, false)
	if got != nil {
		t.Fatalf("expected suppression (nil) when llm reports no active threat, got %v", got)
	}
}

func TestVerifyTransportErrorFailsOpen(t *testing.T) {
	client := openai.NewClient("", "http://127.0.0.1:1", 200*time.Millisecond)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatMissile}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityNone, false)
	if len(got) != 1 || got[0] != domain.ThreatMissile {
		t.Fatalf("expected fail-open to return original kinds, got %v", got)
	}
}

func TestVerifyNoChoicesFailsOpen(t *testing.T) {
	client := newTestClient(t, `{"choices":[]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatMissile}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityNone, false)
	if len(got) != 1 || got[0] != domain.ThreatMissile {
		t.Fatalf("expected fail-open with no choices, got %v", got)
	}
}

func TestVerifyUnparseableJSONFailsOpen(t *testing.T) {
	client := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"not json"}}]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatMissile}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityNone, false)
	if len(got) != 1 || got[0] != domain.ThreatMissile {
		t.Fatalf("expected fail-open with unparseable json, got %v", got)
	}
}

func TestVerifyUnparseableThreatNamesFailOpen(t *testing.T) {
	client := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"{\"threats\":[\"NotARealKind\"],\"reasoning\":[\"x\"]}"}}]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatMissile}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityNone, false)
	if len(got) != 1 || got[0] != domain.ThreatMissile {
		t.Fatalf("expected fail-open when llm returns unparseable threat names, got %v", got)
	}
}

func TestVerifyIgnoresConfirmedKindOutsideKeywordGuess(t *testing.T) {
	client := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"{\"threats\":[\"Shahed\",\"Ballistic\"],\"reasoning\":[\"x\",\"y\"]}"}}]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatShahed}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityNone, false)
	if len(got) != 1 || got[0] != domain.ThreatShahed {
		t.Fatalf("expected Ballistic to be dropped as it was never in the keyword guess, got %v", got)
	}
}

func TestVerifyAllConfirmedKindsOutsideGuessFailsOpen(t *testing.T) {
	client := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"{\"threats\":[\"Ballistic\"],\"reasoning\":[\"x\"]}"}}]}`, http.StatusOK)
	v := New(client, "model", true, noopLogger())

	kinds := []domain.ThreatKind{domain.ThreatShahed}
	got := v.Verify(context.Background(), "text", kinds, domain.ProximityNone, false)
	if len(got) != 1 || got[0] != domain.ThreatShahed {
		t.Fatalf("expected fail-open when every llm-confirmed kind is outside the keyword guess, got %v", got)
	}
}
