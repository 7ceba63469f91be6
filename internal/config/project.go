package config

import "path/filepath"

// ProjectConfig describes the AssemblyScript project the bridge compiles.
// All paths except DistRoot are relative to SourceRoot. Values are built
// once by merging user overrides onto DefaultProject and are never
// mutated afterwards.
type ProjectConfig struct {
	SourceRoot     string            `yaml:"project_root,omitempty"`
	EntryFile      string            `yaml:"src_entry_file,omitempty"`
	ConfigFile     string            `yaml:"config_file,omitempty"`
	WatchSubpath   string            `yaml:"src_match,omitempty"`
	OutputArtifact string            `yaml:"target_wasm_file,omitempty"`
	DistRoot       string            `yaml:"dist_folder,omitempty"`
	ToolBinDir     string            `yaml:"tool_bin_dir,omitempty"`
	CompilerBin    string            `yaml:"compiler_bin,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"` // extra compiler environment
}

// DefaultProject returns the stock project layout.
func DefaultProject() ProjectConfig {
	return ProjectConfig{
		SourceRoot:     "src/engine",
		EntryFile:      "assembly/index.ts",
		ConfigFile:     "asconfig.json",
		WatchSubpath:   "assembly",
		OutputArtifact: "build/assembly.wasm",
		DistRoot:       "dist",
		ToolBinDir:     filepath.Join("node_modules", ".bin"),
		CompilerBin:    "asc",
	}
}

// Merge returns a copy of p with every non-empty field of overrides applied.
// Env maps are combined, overrides winning on key collisions.
func (p ProjectConfig) Merge(overrides ProjectConfig) ProjectConfig {
	out := p
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.SourceRoot, overrides.SourceRoot)
	pick(&out.EntryFile, overrides.EntryFile)
	pick(&out.ConfigFile, overrides.ConfigFile)
	pick(&out.WatchSubpath, overrides.WatchSubpath)
	pick(&out.OutputArtifact, overrides.OutputArtifact)
	pick(&out.DistRoot, overrides.DistRoot)
	pick(&out.ToolBinDir, overrides.ToolBinDir)
	pick(&out.CompilerBin, overrides.CompilerBin)

	if len(p.Env) > 0 || len(overrides.Env) > 0 {
		out.Env = make(map[string]string, len(p.Env)+len(overrides.Env))
		for k, v := range p.Env {
			out.Env[k] = v
		}
		for k, v := range overrides.Env {
			out.Env[k] = v
		}
	}
	return out
}

// EntryPath is SourceRoot/EntryFile.
func (p ProjectConfig) EntryPath() string {
	return filepath.Join(p.SourceRoot, p.EntryFile)
}

// ConfigPath is SourceRoot/ConfigFile.
func (p ProjectConfig) ConfigPath() string {
	return filepath.Join(p.SourceRoot, p.ConfigFile)
}

// WatchPath is the directory whose changes trigger a debug rebuild.
func (p ProjectConfig) WatchPath() string {
	return filepath.Join(p.SourceRoot, p.WatchSubpath)
}

// CompilerPath is the compiler binary under the project's tool bin dir.
func (p ProjectConfig) CompilerPath() string {
	return filepath.Join(p.SourceRoot, p.ToolBinDir, p.CompilerBin)
}

// ArtifactPath is the compiled .wasm file.
func (p ProjectConfig) ArtifactPath() string {
	return filepath.Join(p.SourceRoot, p.OutputArtifact)
}

// SourceMapPath is the source map the compiler writes next to the artifact.
func (p ProjectConfig) SourceMapPath() string {
	return p.ArtifactPath() + ".map"
}

// DistSourceMapPath mirrors SourceMapPath under DistRoot.
func (p ProjectConfig) DistSourceMapPath() string {
	return filepath.Join(p.DistRoot, p.SourceMapPath())
}
