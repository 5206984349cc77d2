// Package pattern compiles search patterns and substitutes their matches.
//
// Patterns use the github.com/dlclark/regexp2 backtracking engine, so
// lookaround assertions and backreferences are available. Replacement text
// may reference groups as $1, ${1} or ${name}; a literal dollar is $$.
//
// A compiled Pattern is safe for concurrent use by multiple goroutines.
package pattern

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Options controls how an expression is compiled.
type Options struct {
	// Literal treats the expression and the replacement as plain text.
	Literal bool
	// IgnoreCase enables case-insensitive matching.
	IgnoreCase bool
	// MatchTimeout bounds a single substitution; zero means no limit.
	MatchTimeout time.Duration
}

// Error reports an expression that failed to compile.
type Error struct {
	Expr string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Expr, e.Err)
}

// Unwrap returns the underlying compile error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCompileError reports whether err is or wraps a pattern compile Error.
func IsCompileError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// Pattern is a compiled search pattern.
type Pattern struct {
	re      *regexp2.Regexp
	literal bool
}

// Compile parses expr according to opts.
func Compile(expr string, opts Options) (*Pattern, error) {
	source := expr
	if opts.Literal {
		source = regexp2.Escape(expr)
	}

	var flags regexp2.RegexOptions
	if opts.IgnoreCase {
		flags |= regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(source, flags)
	if err != nil {
		return nil, &Error{Expr: expr, Err: err}
	}
	if opts.MatchTimeout > 0 {
		re.MatchTimeout = opts.MatchTimeout
	}

	return &Pattern{re: re, literal: opts.Literal}, nil
}

// MustCompile is like Compile but panics on error. It is meant for tests and
// package-level fixtures.
func MustCompile(expr string, opts Options) *Pattern {
	p, err := Compile(expr, opts)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression as handed to the engine.
func (p *Pattern) String() string {
	return p.re.String()
}

// Replace substitutes every match of p in input with replacement.
func (p *Pattern) Replace(input, replacement string) (string, error) {
	if p.literal {
		replacement = strings.ReplaceAll(replacement, "$", "$$")
	}
	out, err := p.re.Replace(input, replacement, -1, -1)
	if err != nil {
		return "", fmt.Errorf("substitute %s: %w", p.re.String(), err)
	}
	return out, nil
}

// Substitution binds a pattern to its replacement text.
type Substitution struct {
	Pattern     *Pattern
	Replacement string
}

// Apply substitutes every match in s.
func (s Substitution) Apply(input string) (string, error) {
	return s.Pattern.Replace(input, s.Replacement)
}
