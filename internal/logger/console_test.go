package logger

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConsoleLoggerLevels(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		logAt      func(cl *ConsoleLogger, msg string)
		wantTag    string
		wantOutput bool
	}{
		{"info passes at info", "info", (*ConsoleLogger).LogInfo, "[INFO]", true},
		{"debug filtered at info", "info", (*ConsoleLogger).LogDebug, "[DEBUG]", false},
		{"trace filtered at debug", "debug", (*ConsoleLogger).LogTrace, "[TRACE]", false},
		{"debug passes at debug", "debug", (*ConsoleLogger).LogDebug, "[DEBUG]", true},
		{"warn passes at info", "info", (*ConsoleLogger).LogWarn, "[WARN]", true},
		{"error passes at warn", "warn", (*ConsoleLogger).LogError, "[ERROR]", true},
		{"info filtered at error", "error", (*ConsoleLogger).LogInfo, "[INFO]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cl := NewConsoleLogger(&buf, tt.configured)
			tt.logAt(cl, "hello")

			got := buf.String()
			if tt.wantOutput {
				if !strings.Contains(got, tt.wantTag) || !strings.Contains(got, "hello") {
					t.Errorf("output %q missing %s / message", got, tt.wantTag)
				}
			} else if got != "" {
				t.Errorf("expected no output, got %q", got)
			}
		})
	}
}

func TestConsoleLoggerTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.LogInfo("msg")

	out := buf.String()
	if len(out) < 11 || out[0] != '[' || out[9] != ']' {
		t.Fatalf("output %q does not start with [HH:MM:SS]", out)
	}
	if _, err := time.Parse("15:04:05", out[1:9]); err != nil {
		t.Errorf("timestamp %q does not parse: %v", out[1:9], err)
	}
}

func TestConsoleLoggerInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "loud")

	cl.LogDebug("hidden")
	cl.LogInfo("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message logged despite default info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info message missing at default level")
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "info")
	// Must not panic
	cl.LogInfo("discarded")
	cl.LogError("discarded")
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(nil) {
		t.Error("nil writer should not be a terminal")
	}
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer writer should not be a terminal")
	}

	// A regular file has an Fd but is not a TTY
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Error("regular file should not be a terminal")
	}
}

func TestConsoleLoggerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				cl.LogInfo("concurrent message")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 200 {
		t.Errorf("got %d lines, want 200", len(lines))
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, "concurrent message") {
			t.Errorf("interleaved line: %q", line)
			break
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{5 * time.Second, "5.0s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{time.Hour, "1h"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNoOpLogger(t *testing.T) {
	var _ Logger = NewNoOpLogger()
	var _ Logger = NewConsoleLogger(nil, "info")
}
