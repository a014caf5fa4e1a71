// Package logging builds the shared *log.Logger: a size-rotated file plus
// an optional in-memory feed the terminal UI renders.
package logging

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nadahalli/thumper/internal/events"
)

const Flags = log.LstdFlags | log.Lmicroseconds

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New opens the rotating log file and returns a logger writing to it and to
// every extra writer. Close the returned io.Closer on shutdown.
func New(opts Options, extra ...io.Writer) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	writers := append([]io.Writer{file}, extra...)
	return log.New(io.MultiWriter(writers...), "", Flags), file, nil
}

// Feed turns written log output into one event per line.
// Partial lines are held until their newline arrives.
type Feed struct {
	lines *events.ChannelEvent[string]

	mu      sync.Mutex
	pending bytes.Buffer
}

func NewFeed() *Feed {
	return &Feed{lines: events.NewChannelEvent[string](events.DropNewest)}
}

func (f *Feed) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.pending.Write(p)
	var complete []string
	for {
		idx := bytes.IndexByte(f.pending.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(f.pending.Next(idx + 1))
		complete = append(complete, strings.TrimRight(line, "\r\n"))
	}
	f.mu.Unlock()

	for _, line := range complete {
		f.lines.Notify(line)
	}
	return len(p), nil
}

// Listen delivers future lines to ch; lines are dropped while ch is full.
func (f *Feed) Listen(ch chan string) func() {
	return f.lines.Listen(ch)
}
