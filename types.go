package portal

import (
	"fmt"
	"strings"
)

// Logger is the minimal logging surface the portal services need.
// Calls pass a message followed by alternating key/value pairs, so
// slog-compatible loggers plug in without adapters. The default
// implementation writes to stdout.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args)
}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args)
}

func (d defLogger) print(level, msg string, args []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] PORTAL %s", level, msg)

	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}

	fmt.Println(b.String())
}
