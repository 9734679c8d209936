package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"
)

// Logger writes timestamped progress lines to a run's log.txt and mirrors
// them to stderr in color, the way cmd/kanso-lsp configures commonlog at
// startup and cmd/kanso-cli colorizes its own diagnostics.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	sink commonlog.Logger
}

// NewLogger configures commonlog once (verbosity 1, matching the LSP
// binary) and opens path for append, creating it if needed.
func NewLogger(path string) (*Logger, error) {
	commonlog.Configure(1, nil)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: f, sink: commonlog.GetLogger("arbitrar-core")}, nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Printf writes one timestamped line to log.txt and a colorized copy to
// stderr.
func (l *Logger) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	stamped := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), line)

	l.mu.Lock()
	fmt.Fprintln(l.file, stamped)
	l.mu.Unlock()

	dim := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(stderrWriter, "%s %s\n", dim("["+time.Now().UTC().Format("15:04:05")+"]"), cyan(line))

	l.sink.Debugf(line)
}

// stderrWriter is a seam for tests to capture mirrored output without
// touching the real stderr.
var stderrWriter io.Writer = os.Stderr
