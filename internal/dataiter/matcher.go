// Package dataiter implements the stateful query cursor described by C12:
// a Dataiterator walks (solvid, key, value) triples across a repo's
// repodatas without the caller threading schema/key bookkeeping itself,
// and a Datamatcher compiles a match spec once and reuses it against
// every candidate string. This mirrors repodata.c's dataiterator_init/
// _step/_match state machine, built on top of Repodata.DecodeEntry
// rather than re-deriving the schema walk.
package dataiter

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	solverrors "github.com/standardbeagle/solv/internal/errors"
)

// MatchKind selects how Datamatcher.Match compares a candidate string
// against the compiled pattern.
type MatchKind int

const (
	MatchSubstring MatchKind = iota
	MatchString
	MatchPrefix
	MatchSuffix
	MatchGlob
	MatchRegex
)

// Datamatcher is a compiled match spec: kind x case sensitivity, plus
// whatever precomputed state the kind needs (a lowercased pattern for
// the plain-string kinds, a compiled *regexp.Regexp for MatchRegex).
// Compile once with NewDatamatcher and reuse across every candidate, the
// same "compile once, match many" shape the rest of this module uses for
// EVR comparators and schema pools.
type Datamatcher struct {
	kind          MatchKind
	caseSensitive bool
	pattern       string
	re            *regexp.Regexp
}

// NewDatamatcher compiles a match spec. Regex patterns are compiled
// immediately (case-insensitivity folded in via the `(?i)` flag so the
// compiled program itself is case-aware); the other kinds just fold the
// pattern's case up front when matching case-insensitively.
func NewDatamatcher(kind MatchKind, pattern string, caseSensitive bool) (*Datamatcher, error) {
	m := &Datamatcher{kind: kind, caseSensitive: caseSensitive, pattern: pattern}
	switch kind {
	case MatchRegex:
		expr := pattern
		if !caseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, solverrors.Wrap(solverrors.KindCaller, "dataiter.NewDatamatcher", err)
		}
		m.re = re
	case MatchSubstring, MatchString, MatchPrefix, MatchSuffix, MatchGlob:
		if !caseSensitive {
			m.pattern = strings.ToLower(pattern)
		}
	default:
		return nil, solverrors.Caller("dataiter.NewDatamatcher", "unknown match kind")
	}
	return m, nil
}

// Match reports whether s satisfies the compiled spec.
func (m *Datamatcher) Match(s string) bool {
	if m.kind == MatchRegex {
		return m.re.MatchString(s)
	}
	cand := s
	if !m.caseSensitive {
		cand = strings.ToLower(s)
	}
	switch m.kind {
	case MatchSubstring:
		return strings.Contains(cand, m.pattern)
	case MatchString:
		return cand == m.pattern
	case MatchPrefix:
		return strings.HasPrefix(cand, m.pattern)
	case MatchSuffix:
		return strings.HasSuffix(cand, m.pattern)
	case MatchGlob:
		ok, _ := doublestar.Match(m.pattern, cand)
		return ok
	}
	return false
}
