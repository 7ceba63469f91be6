package bridge

import (
	"fmt"
	"os"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// ValidateLayout checks that the project root is an existing directory and
// that the entry file exists under it. It only stats the filesystem.
func ValidateLayout(project config.ProjectConfig) error {
	info, err := os.Stat(project.SourceRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigError{Kind: KindNotFound, Field: "projectRoot", Value: project.SourceRoot}
		}
		return fmt.Errorf("failed to stat project root: %w", err)
	}
	if !info.IsDir() {
		return &ConfigError{Kind: KindNotADirectory, Field: "projectRoot", Value: project.SourceRoot}
	}

	if _, err := os.Stat(project.EntryPath()); err != nil {
		if os.IsNotExist(err) {
			return &ConfigError{Kind: KindEntryMissing, Field: "srcEntryFile", Value: project.EntryFile}
		}
		return fmt.Errorf("failed to stat entry file: %w", err)
	}

	logging.BuildDebug("Layout ok: root=%s entry=%s", project.SourceRoot, project.EntryFile)
	return nil
}
