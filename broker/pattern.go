package broker

import (
	"path"
	"regexp"
	"strings"

	"github.com/c360/msgbroker/errors"
)

// PatternKind selects how a Pattern matches channel names.
type PatternKind int

const (
	// PatternLiteral matches the channel name exactly.
	PatternLiteral PatternKind = iota
	// PatternGlob matches using path.Match-style globs (*, ?, [...]).
	PatternGlob
	// PatternRegexp matches using a regular expression; it is anchored
	// only where the pattern itself uses ^ and $.
	PatternRegexp
)

// Pattern is a compiled channel-name matcher, used by getChannels,
// watchChannels, and addMonitor.
type Pattern struct {
	kind    PatternKind
	literal string
	re      *regexp.Regexp
}

// CompilePattern compiles a pattern string for the given kind. kind
// must be "glob" or "regexp" when explicit (as getChannels/
// watchChannels require); CompileImplicit below resolves the bare-
// pattern ambiguity addMonitor's wire format leaves open.
func CompilePattern(pattern, kind string) (*Pattern, error) {
	switch kind {
	case "glob", "":
		return compileGlobOrLiteral(pattern), nil
	case "regexp":
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.WrapInvalid(err, "broker", "CompilePattern", "compile regexp pattern")
		}
		return &Pattern{kind: PatternRegexp, re: re}, nil
	default:
		return nil, errors.WrapInvalid(
			errors.ErrInvalidData, "broker", "CompilePattern", "unknown pattern type "+kind)
	}
}

// CompileImplicit resolves the addMonitor ambiguity documented in
// DESIGN.md's Open Questions: a pattern wrapped in leading/trailing
// slashes (e.g. "/^worker-\d+$/") is an anchored regular expression;
// anything else is a glob (or a literal name, which is just a glob with
// no metacharacters).
func CompileImplicit(pattern string) (*Pattern, error) {
	if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		return CompilePattern(pattern[1:len(pattern)-1], "regexp")
	}
	return compileGlobOrLiteral(pattern), nil
}

func compileGlobOrLiteral(pattern string) *Pattern {
	if !strings.ContainsAny(pattern, "*?[") {
		return &Pattern{kind: PatternLiteral, literal: pattern}
	}
	return &Pattern{kind: PatternGlob, literal: pattern}
}

// Match reports whether name satisfies the pattern.
func (p *Pattern) Match(name string) bool {
	switch p.kind {
	case PatternLiteral:
		return p.literal == name
	case PatternGlob:
		ok, err := path.Match(p.literal, name)
		return err == nil && ok
	case PatternRegexp:
		return p.re.MatchString(name)
	default:
		return false
	}
}

// String returns the original pattern text, for logging.
func (p *Pattern) String() string {
	if p.kind == PatternRegexp {
		return p.re.String()
	}
	return p.literal
}
