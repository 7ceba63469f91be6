package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
)

// PassLine is the console line a page logs once its wasm module ran.
func PassLine(modern bool) string {
	return fmt.Sprintf("PASS! (modernBrowser = %t)", modern)
}

// IndexHTML loads app.js both as a module and as a nomodule fallback, the
// way a page built for modern and legacy browsers does.
const IndexHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>ascbridge</title></head>
<body>
<script type="module">window.__modern = true;</script>
<script type="module" src="/app.js"></script>
<script nomodule src="/app.js"></script>
</body>
</html>
`

// AppJS logs the oracle line for whichever loading path ran.
const AppJS = `console.log("PASS! (modernBrowser = " + (window.__modern === true) + ")");
`

// NewWebRoot writes files (relative path to content) under a temp dir and
// returns its path. A nil map writes index.html and app.js.
func NewWebRoot(t testing.TB, files map[string]string) string {
	t.Helper()
	if files == nil {
		files = map[string]string{
			"index.html": IndexHTML,
			"app.js":     AppJS,
		}
	}
	dir := t.TempDir()
	for name, content := range files {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), content)
	}
	return dir
}
