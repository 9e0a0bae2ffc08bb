package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/domain"
)

func TestDumpWriterRoundTripsThroughDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.jsonl")

	w, err := NewDumpWriter(path)
	if err != nil {
		t.Fatalf("NewDumpWriter: %v", err)
	}
	msgs := []domain.IncomingMessage{
		{Channel: "air_alert_ua", MessageID: 1, Timestamp: 1700000000, Text: "перший"},
		{Channel: "air_alert_ua", MessageID: 2, Timestamp: 1700000000, Text: "другий"},
	}
	for _, m := range msgs {
		if err := w.Write(m); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	driver := NewDriver(Clock{Speed: 1000, MaxDelayMs: 10}, zerolog.Nop())

	var got []domain.IncomingMessage
	err = driver.Run(context.Background(), path, func(msg domain.IncomingMessage, now time.Time) {
		got = append(got, msg)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(got))
	}
	if got[0].Text != "перший" || got[1].Text != "другий" {
		t.Fatalf("unexpected replayed content: %+v", got)
	}
}

func TestDriverSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.jsonl")
	content := "{\"ts\":1700000000,\"channel\":\"ch\",\"id\":1,\"text\":\"ok\"}\n" +
		"not json at all\n" +
		"{\"ts\":1700000001,\"channel\":\"ch\",\"id\":2,\"text\":\"also ok\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	driver := NewDriver(Clock{Speed: 1000, MaxDelayMs: 10}, zerolog.Nop())

	var count int
	err := driver.Run(context.Background(), path, func(msg domain.IncomingMessage, now time.Time) {
		count++
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected malformed line to be skipped, leaving 2 messages, got %d", count)
	}
}

func TestDriverPacesUsingSyntheticNow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.jsonl")
	content := "{\"ts\":1700000000,\"channel\":\"ch\",\"id\":1,\"text\":\"a\"}\n" +
		"{\"ts\":1700000005,\"channel\":\"ch\",\"id\":2,\"text\":\"b\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	driver := NewDriver(Clock{StepMs: 1, MaxDelayMs: 50}, zerolog.Nop())

	var stamps []time.Time
	err := driver.Run(context.Background(), path, func(msg domain.IncomingMessage, now time.Time) {
		stamps = append(stamps, now)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stamps) != 2 || stamps[0].Equal(stamps[1]) {
		t.Fatalf("expected the synthetic now to track each record's own timestamp, got %v", stamps)
	}
}

func TestDriverStopsOnContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.jsonl")
	content := "{\"ts\":1700000000,\"channel\":\"ch\",\"id\":1,\"text\":\"a\"}\n" +
		"{\"ts\":1700003600,\"channel\":\"ch\",\"id\":2,\"text\":\"b\"}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	driver := NewDriver(Clock{Speed: 1, MaxDelayMs: 60000}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var count int
	err := driver.Run(ctx, path, func(msg domain.IncomingMessage, now time.Time) {
		count++
	})
	if err == nil {
		t.Fatalf("expected Run to report the cancellation error")
	}
	if count != 1 {
		t.Fatalf("expected exactly the first message to have been processed before cancellation, got %d", count)
	}
}
