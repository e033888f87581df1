package logs

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(os.Stdout)
		SetLevel(LevelInfo)
		SetNodeTag("")
	}()

	SetLevel(LevelWarning)
	SetNodeTag("[n1]")
	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[n1] shown 2")
	assert.Contains(t, out, "log_test.go")
}

func TestParseLevel(t *testing.T) {
	SetOutput(io.Discard)
	defer SetOutput(os.Stdout)

	lvl, ok := ParseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, LevelDebug, lvl)

	assert.False(t, SetLevelByName("loud"))
	assert.True(t, SetLevelByName(strings.ToUpper("error")))
	SetLevel(LevelInfo)
}
