package executor

import (
	"strings"
	"testing"
)

func TestSessionOutputBuffersWithoutSink(t *testing.T) {
	out := newSessionOutput()
	out.Write([]byte("a\nb"))

	if got := out.String(); got != "a\nb" {
		t.Errorf("buffered = %q, want %q", got, "a\nb")
	}
}

func TestSessionOutputStreamsWithoutBuffering(t *testing.T) {
	out := newSessionOutput()

	var lines []string
	detach := out.attach(func(line string) {
		lines = append(lines, line)
	})
	for i := 0; i < 1000; i++ {
		out.Write([]byte("line\r\n"))
	}
	out.Write([]byte("\npartial"))
	detach()

	if len(lines) != 1002 {
		t.Fatalf("got %d lines, want 1002", len(lines))
	}
	if lines[0] != "line" || lines[1000] != "" || lines[1001] != "partial" {
		t.Errorf("unexpected lines: %q", strings.Join(lines[999:], "|"))
	}
	if got := out.String(); got != "" {
		t.Errorf("streamed output was buffered: %d bytes", len(got))
	}

	// Detached again, output is buffered.
	out.Write([]byte("after"))
	if got := out.String(); got != "after" {
		t.Errorf("buffered = %q, want %q", got, "after")
	}
}
