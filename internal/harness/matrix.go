package harness

import (
	"fmt"

	"ascbridge/internal/bridge"
	"ascbridge/internal/config"
	"ascbridge/internal/provision"
)

// Filter narrows the default matrix.
type Filter struct {
	Strategies []provision.Strategy // empty means all
	Modern     []bool               // empty means both
	Layout     bool                 // include the layout-failure scenarios
}

// DefaultMatrix returns {live, static} x {modern, legacy} followed by the
// three layout failures, each expecting the exact error message. Layout
// scenarios are derived from base so they fail regardless of where the
// real project lives.
func DefaultMatrix(base config.ProjectConfig, f Filter) []Scenario {
	strategies := f.Strategies
	if len(strategies) == 0 {
		strategies = []provision.Strategy{provision.StrategyLive, provision.StrategyStatic}
	}
	modes := f.Modern
	if len(modes) == 0 {
		modes = []bool{true, false}
	}

	var out []Scenario
	for _, s := range strategies {
		for _, modern := range modes {
			out = append(out, Scenario{
				Name:     fmt.Sprintf("%s/%s", s, browserName(modern)),
				Strategy: s,
				Modern:   modern,
			})
		}
	}
	if !f.Layout {
		return out
	}

	missingRoot := "foobar"
	fileRoot := base.ConfigPath()
	missingEntry := "build/release.wasm"
	out = append(out,
		Scenario{
			Name:      "layout/missing-root",
			Strategy:  provision.StrategyStatic,
			Overrides: config.ProjectConfig{SourceRoot: missingRoot},
			WantErr:   (&bridge.ConfigError{Kind: bridge.KindNotFound, Field: "projectRoot", Value: missingRoot}).Error(),
		},
		Scenario{
			Name:      "layout/root-is-file",
			Strategy:  provision.StrategyStatic,
			Overrides: config.ProjectConfig{SourceRoot: fileRoot},
			WantErr:   (&bridge.ConfigError{Kind: bridge.KindNotADirectory, Field: "projectRoot", Value: fileRoot}).Error(),
		},
		Scenario{
			Name:      "layout/missing-entry",
			Strategy:  provision.StrategyStatic,
			Overrides: config.ProjectConfig{EntryFile: missingEntry},
			WantErr:   (&bridge.ConfigError{Kind: bridge.KindEntryMissing, Field: "srcEntryFile", Value: missingEntry}).Error(),
		},
	)
	return out
}

func browserName(modern bool) string {
	if modern {
		return "modern"
	}
	return "legacy"
}
