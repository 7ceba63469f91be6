package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripModuleScripts(t *testing.T) {
	in := `<!DOCTYPE html><html><head>
<script type="module">window.__modern = true;</script>
<script type="MODULE" src="/app.js"></script>
<script nomodule src="/app.js"></script>
<script>var classic = 1;</script>
</head><body><p>hi</p></body></html>`

	out, err := StripModuleScripts([]byte(in))
	require.NoError(t, err)
	s := string(out)

	assert.NotContains(t, s, "window.__modern")
	assert.NotContains(t, s, `type="MODULE"`)
	assert.NotContains(t, s, "nomodule")
	assert.Contains(t, s, `<script src="/app.js"></script>`)
	assert.Contains(t, s, "var classic = 1;")
	assert.Contains(t, s, "<p>hi</p>")
}

func TestStripModuleScriptsLeavesPlainPagesAlone(t *testing.T) {
	out, err := StripModuleScripts([]byte(`<html><body><script src="/a.js"></script></body></html>`))
	require.NoError(t, err)
	assert.Contains(t, string(out), `<script src="/a.js"></script>`)
}

func TestStringifyConsoleArgs(t *testing.T) {
	assert.Equal(t, "", stringifyConsoleArgs(nil))
}
