// Package catalog maps platform project slugs to their token symbols
// and lifecycle stages.
package catalog

import (
	"sort"
	"strings"

	"github.com/descilabs/launchpad/pkg/types"
)

// DefaultSymbol is used for projects without a registered token.
const DefaultSymbol = "CURE"

type entry struct {
	symbol string
	stage  types.ProjectStage
}

var projects = map[string]entry{
	"reflexdao":   {"REFLEX", types.StageStaking},
	"cerebrumdao": {"CERE", types.StageFundraising},
	"curetopia":   {"CURE", types.StageCurating},
	"sleepdao":    {"SLEEP", types.StageCurating},
	"kidneydao":   {"KIDNEY", types.StageAMM},
	"microbiome":  {"MICRO", types.StageFundraising},
}

// SymbolFor returns the token symbol for a project slug. Unknown
// projects fall back to DefaultSymbol.
func SymbolFor(project string) string {
	if e, ok := projects[strings.ToLower(project)]; ok {
		return e.symbol
	}
	return DefaultSymbol
}

// StageFor returns the lifecycle stage for a project slug. Unknown
// projects are treated as still curating.
func StageFor(project string) types.ProjectStage {
	if e, ok := projects[strings.ToLower(project)]; ok {
		return e.stage
	}
	return types.StageCurating
}

// Projects returns the registered project slugs in sorted order
func Projects() []string {
	out := make([]string, 0, len(projects))
	for slug := range projects {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
