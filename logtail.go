package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/encoding/japanese"
)

// LogPosition is the tailer's cursor into the watched file.
type LogPosition struct {
	Offset  int64
	ModTime time.Time
}

// LogTailer polls a growing log file and fans out parsed events to subscribers.
type LogTailer struct {
	path        string
	interval    time.Duration
	decode      func([]byte) (string, error)
	logger      hclog.Logger
	subscribers []LogSubscriber

	// pos is only touched by the polling goroutine once Start returns.
	pos LogPosition

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLogTailer(path string, interval time.Duration, encoding string, logger hclog.Logger) (*LogTailer, error) {
	decode, err := logDecoder(encoding)
	if err != nil {
		return nil, err
	}
	return &LogTailer{
		path:     path,
		interval: interval,
		decode:   decode,
		logger:   logger,
	}, nil
}

func (t *LogTailer) Subscribe(sub LogSubscriber) {
	t.subscribers = append(t.subscribers, sub)
}

// Position returns the current cursor. Only meaningful while the tailer is stopped
// or from the polling goroutine itself.
func (t *LogTailer) Position() LogPosition {
	return t.pos
}

// Start records the current end of the file as the baseline and starts polling.
// Lines written before Start are never emitted.
func (t *LogTailer) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	t.pos = LogPosition{}
	if info, err := os.Stat(t.path); err == nil {
		t.pos = LogPosition{Offset: info.Size(), ModTime: info.ModTime()}
	} else {
		t.logger.Warn("log file not readable yet, tailing from its beginning once it appears", "path", t.path, "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.logger.Info("tailing server log", "path", t.path, "offset", t.pos.Offset, "interval", t.interval)

	go func(done chan struct{}) {
		defer close(done)
		t.run(ctx)
	}(t.done)
}

// Stop cancels polling and waits for an in-flight tick to finish.
// Calling Stop on a tailer that is not running is a no-op.
func (t *LogTailer) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.logger.Info("stopped tailing server log", "path", t.path)
}

func (t *LogTailer) run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick runs one poll. Errors are logged and retried on the next tick since the
// file may be mid-rotation.
func (t *LogTailer) tick() {
	info, err := os.Stat(t.path)
	if err != nil {
		t.logger.Debug("stat log file", "path", t.path, "error", err)
		return
	}
	size, mtime := info.Size(), info.ModTime()

	if size < t.pos.Offset {
		t.logger.Info("log file shrank, assuming rotation", "path", t.path, "size", size, "offset", t.pos.Offset)
		t.pos.Offset = 0
	}
	if !mtime.After(t.pos.ModTime) || size <= t.pos.Offset {
		return
	}

	chunk, err := t.readRange(t.pos.Offset, size)
	if err != nil {
		t.logger.Warn("read log file", "path", t.path, "error", err)
		return
	}

	// A trailing partial line stays on disk until the writer finishes it.
	complete := bytes.LastIndexByte(chunk, '\n') + 1
	if complete == 0 {
		return
	}
	t.pos.ModTime = mtime
	text, err := t.decode(chunk[:complete])
	if err != nil {
		t.logger.Warn("decode log chunk", "path", t.path, "error", err)
	}
	t.pos.Offset += int64(complete)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if event := ParseLogLine(line); event != nil {
			for _, sub := range t.subscribers {
				sub.OnLogEvent(event)
			}
		}
	}
}

func (t *LogTailer) readRange(from, to int64) ([]byte, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, to-from)
	n, err := f.ReadAt(buf, from)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// logDecoder returns the byte-to-text conversion for the configured log encoding.
// Servers on Japanese Windows hosts write Shift_JIS.
func logDecoder(encoding string) (func([]byte) (string, error), error) {
	switch strings.ToLower(encoding) {
	case "", "auto":
		return func(b []byte) (string, error) {
			if utf8.Valid(b) {
				return string(b), nil
			}
			return decodeShiftJIS(b)
		}, nil
	case "utf-8", "utf8":
		return func(b []byte) (string, error) {
			return strings.ToValidUTF8(string(b), "�"), nil
		}, nil
	case "shift_jis", "shift-jis", "sjis":
		return decodeShiftJIS, nil
	default:
		return nil, fmt.Errorf("unsupported log encoding %q", encoding)
	}
}

func decodeShiftJIS(b []byte) (string, error) {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�"), fmt.Errorf("shift_jis: %w", err)
	}
	return string(out), nil
}
