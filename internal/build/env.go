// Package build runs the AssemblyScript compiler for a project and copies
// its outputs into the dist tree.
package build

import (
	"os"
	"sort"
	"strings"

	"ascbridge/internal/config"
	"ascbridge/internal/logging"
)

// CompilerEnv returns the environment for a compiler child process: the
// caller's environment with project.Env layered on top.
func CompilerEnv(project config.ProjectConfig) []string {
	env := os.Environ()
	if len(project.Env) == 0 {
		return env
	}

	keys := make([]string, 0, len(project.Env))
	for k := range project.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	extra := make([]string, 0, len(keys))
	for _, k := range keys {
		extra = append(extra, k+"="+project.Env[k])
		logging.BuildDebug("Added project env: %s", k)
	}
	return MergeEnv(env, extra...)
}

// setEnvKey sets or updates an environment variable.
func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}

// MergeEnv merges additional KEY=VALUE entries into base.
// Later values override earlier ones; base is not modified.
func MergeEnv(base []string, additional ...string) []string {
	result := make([]string, len(base))
	copy(result, base)

	for _, add := range additional {
		parts := strings.SplitN(add, "=", 2)
		if len(parts) == 2 {
			result = setEnvKey(result, parts[0], parts[1])
		}
	}

	return result
}
