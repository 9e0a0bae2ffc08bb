// Package replay implements the dump/replay adapter (A7): a JSONL writer for
// recording live traffic and a synthetic-clock driver for replaying a dump
// deterministically against the pipeline (§8 P7).
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/domain"
)

// DumpWriter appends IncomingMessage records to a JSONL file, one object
// per line, in the wire format described by §6.
type DumpWriter struct {
	f *os.File
}

// NewDumpWriter opens path for appending, creating it if necessary.
func NewDumpWriter(path string) (*DumpWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("replay: open dump file: %w", err)
	}
	return &DumpWriter{f: f}, nil
}

// Write appends one message as a JSON line.
func (w *DumpWriter) Write(msg domain.IncomingMessage) error {
	line, err := json.Marshal(dumpLine{TS: msg.Timestamp, Channel: msg.Channel, ID: msg.MessageID, Text: msg.Text})
	if err != nil {
		return fmt.Errorf("replay: marshal dump line: %w", err)
	}
	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("replay: write dump line: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *DumpWriter) Close() error {
	return w.f.Close()
}

type dumpLine struct {
	TS      int64  `json:"ts"`
	Channel string `json:"channel"`
	ID      uint64 `json:"id"`
	Text    string `json:"text"`
}

// Clock controls how the driver paces replayed messages.
type Clock struct {
	Speed      float64
	StepMs     int
	MinDelayMs int
	MaxDelayMs int
}

// Driver replays a JSONL dump file against a process function, pacing
// delivery by either a fixed step or the dump's own timestamp deltas
// scaled by Speed, clamped to [MinDelayMs, MaxDelayMs].
type Driver struct {
	clock Clock
	log   zerolog.Logger
}

// NewDriver builds a replay Driver.
func NewDriver(clock Clock, log zerolog.Logger) *Driver {
	if clock.Speed <= 0 {
		clock.Speed = 1.0
	}
	if clock.MaxDelayMs <= 0 {
		clock.MaxDelayMs = 60000
	}
	return &Driver{clock: clock, log: log.With().Str("component", "replay").Logger()}
}

// Run reads path line by line and invokes process for each well-formed
// message, pacing delivery per the configured Clock. Malformed lines are
// logged and skipped (§7). process receives the message's own dump
// timestamp as the synthetic "now" so downstream dedup/context logic is
// deterministic (§8 P7).
func (d *Driver) Run(ctx context.Context, path string, process func(domain.IncomingMessage, time.Time)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("replay: open dump file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var prevTS int64
	first := true
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var parsed dumpLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			d.log.Warn().Err(err).Int("line", lineNo).Msg("replay: malformed dump line, skipping")
			continue
		}

		if !first {
			if err := d.wait(ctx, prevTS, parsed.TS); err != nil {
				return err
			}
		}
		first = false
		prevTS = parsed.TS

		msg := domain.IncomingMessage{Channel: parsed.Channel, MessageID: parsed.ID, Timestamp: parsed.TS, Text: parsed.Text}
		process(msg, time.Unix(parsed.TS, 0).UTC())
	}
	return scanner.Err()
}

func (d *Driver) wait(ctx context.Context, prevTS, ts int64) error {
	var delayMs int
	if d.clock.StepMs > 0 {
		delayMs = d.clock.StepMs
	} else {
		deltaSecs := ts - prevTS
		if deltaSecs < 0 {
			deltaSecs = 0
		}
		delayMs = int(float64(deltaSecs) * 1000 / d.clock.Speed)
	}
	if delayMs < d.clock.MinDelayMs {
		delayMs = d.clock.MinDelayMs
	}
	if delayMs > d.clock.MaxDelayMs {
		delayMs = d.clock.MaxDelayMs
	}
	if delayMs <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
		return nil
	}
}
