package diagnostics

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnostic_StringIncludesCodeAndCause(t *testing.T) {
	d := New(ErrModuleLoad, "failed to load module", errors.New("no such file"))
	s := d.String()
	assert.True(t, strings.Contains(s, ErrModuleLoad))
	assert.True(t, strings.Contains(s, "failed to load module"))
	assert.True(t, strings.Contains(s, "no such file"))
}

func TestDiagnostic_StringWithoutCause(t *testing.T) {
	d := New(ErrOutputDir, "could not create output directory", nil)
	s := d.String()
	assert.True(t, strings.Contains(s, ErrOutputDir))
	assert.False(t, strings.Contains(s, "<nil>"))
}

func TestDiagnostic_ImplementsError(t *testing.T) {
	var err error = New(ErrConfigParse, "bad config", nil)
	assert.Equal(t, err.Error(), New(ErrConfigParse, "bad config", nil).String())
}
