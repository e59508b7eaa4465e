// Package debug provides a global, opt-in trace sink used across the pool,
// writer and reader packages. It never writes unless a caller has pointed
// it at something, so library use (as opposed to the cmd/ tools) stays
// silent by default.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// EnableDebug is a build-time flag: go build -ldflags "-X .../debug.EnableDebug=true"
var EnableDebug = "false"

var (
	mu     sync.Mutex
	output io.Writer
)

// SetOutput points trace output at w. Pass nil to disable it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether tracing is currently active.
func Enabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("SOLV_DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Log writes a component-tagged trace line, e.g. Log("writer", "pass1: %d ids", n).
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[%s] "+format+"\n", append([]interface{}{component}, args...)...)
}
