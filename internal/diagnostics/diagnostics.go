// Package diagnostics formats fatal startup and I/O errors for the CLI as a
// single colored line, adapted from the compiler's own structured error
// reporter but trimmed to the one shape a batch tool needs: no source
// position, no carets, no suggestions.
package diagnostics

import (
	"fmt"

	"github.com/fatih/color"
)

// ErrorLevel mirrors the compiler reporter's severity vocabulary.
type ErrorLevel string

const (
	Error   ErrorLevel = "error"
	Warning ErrorLevel = "warning"
)

// Error codes occupy EP001+, disjoint from the compiler's E0xxx/W0xxx range
// so the two packages never collide if ever linked together.
const (
	ErrModuleLoad   = "EP001"
	ErrFilterParse  = "EP002"
	ErrOutputDir    = "EP003"
	ErrSliceWrite   = "EP004"
	ErrTraceWrite   = "EP005"
	ErrFeatureWrite = "EP006"
	ErrConfigParse  = "EP007"
	ErrLogFileOpen  = "EP008"
)

// Diagnostic is a single fatal condition reported to the user.
type Diagnostic struct {
	Level ErrorLevel
	Code  string
	Msg   string
	Cause error
}

// New builds a Diagnostic at error level.
func New(code, msg string, cause error) Diagnostic {
	return Diagnostic{Level: Error, Code: code, Msg: msg, Cause: cause}
}

// String renders the diagnostic as a single colored line:
//
//	error[EP001]: failed to load module: <cause>
func (d Diagnostic) String() string {
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if d.Level == Warning {
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	head := fmt.Sprintf("%s[%s]: %s", levelColor(string(d.Level)), d.Code, d.Msg)
	if d.Cause != nil {
		return fmt.Sprintf("%s: %s", head, d.Cause)
	}
	return head
}

func (d Diagnostic) Error() string { return d.String() }
