package zeta

import (
	"slices"

	"github.com/chosenoffset/zeta/pkg/zeta/parser"
)

// ExtractDependencies returns the state keys src refers to, in first-seen
// order. It is a lexical scan, not a parse: identifiers inside string
// literals count, and the result is cached per source text for the life of
// the engine, so keys added to state after the first call for src are not
// picked up until ClearCaches.
func (e *Engine) ExtractDependencies(src string) []string {
	if deps, ok := e.depsCache[src]; ok {
		return slices.Clone(deps)
	}

	deps := []string{}
	for _, word := range parser.ScanIdentifiers(src) {
		if slices.Contains(parser.ReservedWords, word) {
			continue
		}
		if _, ok := e.state[word]; ok {
			deps = append(deps, word)
		}
	}

	e.depsCache[src] = deps
	return slices.Clone(deps)
}

// Dependencies extracts the dependencies of a computation from its source
// text.
func (e *Engine) Dependencies(c Computation) []string {
	return e.ExtractDependencies(c.Source())
}
