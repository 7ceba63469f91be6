package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// CopySourceMap copies the artifact's source map into the dist tree,
// creating directories as needed. A missing source map is not an error:
// copied is false and nothing is written.
func CopySourceMap(project config.ProjectConfig) (copied bool, err error) {
	src := project.SourceMapPath()
	dst := project.DistSourceMapPath()

	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			logging.BuildDebug("No source map at %s, skipping copy", src)
			return false, nil
		}
		return false, fmt.Errorf("failed to open source map: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("failed to create dist directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("failed to copy source map: %w", err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", dst, err)
	}

	logging.BuildDebug("Copied source map %s -> %s", src, dst)
	logging.Audit(logging.AuditEvent{Type: logging.AuditSourceMapCopy, Target: dst, Success: true})
	return true, nil
}
