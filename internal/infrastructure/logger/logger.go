package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var levelColors = []struct {
	token []byte
	color string
}{
	{[]byte("level=DEBUG"), colorCyan},
	{[]byte("level=INFO"), colorGreen},
	{[]byte("level=WARN"), colorYellow},
	{[]byte("level=ERROR"), colorRed},
}

// Options configures a service logger.
type Options struct {
	AppName     string
	Level       string
	Environment string
	// Output defaults to stderr so commands can keep stdout for their own output.
	Output io.Writer
}

// New builds a structured slog logger. Local environments get colored text,
// everything else gets JSON.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: true,
	}

	var handler slog.Handler
	if isLocal(opts.Environment) {
		handler = slog.NewTextHandler(&colorWriter{writer: out, enabled: isTerminal(out)}, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return slog.New(handler).With("app", opts.AppName)
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isLocal(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "local", "dev", "development":
		return true
	}
	return false
}

// colorWriter highlights the level token of each text record.
type colorWriter struct {
	writer  io.Writer
	enabled bool
}

func (cw *colorWriter) Write(p []byte) (int, error) {
	if !cw.enabled {
		return cw.writer.Write(p)
	}
	// The level token is the first one on the line; later matches belong to attributes.
	at, pick := -1, -1
	for k, lc := range levelColors {
		if i := bytes.Index(p, lc.token); i >= 0 && (at < 0 || i < at) {
			at, pick = i, k
		}
	}
	out := p
	if pick >= 0 {
		lc := levelColors[pick]
		out = make([]byte, 0, len(p)+len(lc.color)+len(colorReset))
		out = append(out, p[:at]...)
		out = append(out, lc.color...)
		out = append(out, lc.token...)
		out = append(out, colorReset...)
		out = append(out, p[at+len(lc.token):]...)
	}
	if _, err := cw.writer.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
