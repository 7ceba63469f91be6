package host

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ascbridge/internal/logging"
)

// Bundler runs a one-shot production build of a web root.
type Bundler struct {
	// Skip lists extra directories left out of the output, e.g. dist.
	Skip []string
}

// Build runs every plugin's BuildStart, then collects root into a Result.
// .js and .mjs files become chunks; everything else is an asset.
// node_modules and dot-directories are never collected.
func (b *Bundler) Build(ctx context.Context, root string, plugins ...Plugin) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryServe, "bundle "+root)
	defer timer.Stop()

	if err := buildStart(ctx, plugins); err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(b.Skip))
	for _, s := range b.Skip {
		if abs, err := filepath.Abs(s); err == nil {
			skip[abs] = true
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve web root: %w", err)
	}

	res := &Result{}
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != absRoot && (skipDir(d.Name()) || skip[path]) {
				return filepath.SkipDir
			}
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		switch strings.ToLower(filepath.Ext(name)) {
		case ".js", ".mjs":
			res.Output = append(res.Output, OutputFile{FileName: name, Kind: KindChunk, Code: string(data)})
		default:
			res.Output = append(res.Output, OutputFile{FileName: name, Kind: KindAsset, Source: data})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s: %w", root, err)
	}

	logging.ServeDebug("Bundled %d files from %s", len(res.Output), root)
	return res, nil
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}
