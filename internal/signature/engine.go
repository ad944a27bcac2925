// Package signature implements C5: an ordered list of compiled regex rules
// evaluated against a packet's textual payload slice, first match wins.
package signature

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/danger-dream/apollo-ips/internal/ipserr"
	"github.com/danger-dream/apollo-ips/internal/types"
)

// RuleConfig is the declared-order configuration shape loaded from YAML
// (see internal/config).
type RuleConfig struct {
	Pattern  string         `mapstructure:"pattern"`
	Name     string         `mapstructure:"name"`
	Severity types.Severity `mapstructure:"severity"`
}

// Rule is a RuleConfig after compilation. Immutable after Engine
// construction.
type Rule struct {
	pattern  *regexp.Regexp
	name     string
	severity types.Severity
}

// Engine holds the compiled rule set in declared configuration order.
type Engine struct {
	rules []Rule
}

// New compiles every rule in order. Compilation failure is a ConfigLoadError
// since a broken pattern can never match and signals a broken config, not a
// recoverable runtime condition. Matching is always case-insensitive,
// regardless of what the pattern text itself requests.
func New(rules []RuleConfig) (*Engine, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		pattern := r.Pattern
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: signature rule %q: %v", ipserr.ErrConfigLoad, r.Name, err)
		}
		compiled = append(compiled, Rule{pattern: re, name: r.Name, severity: r.Severity})
	}
	return &Engine{rules: compiled}, nil
}

// Scan decodes payload as UTF-8 (replacing invalid sequences with the
// standard lossy placeholder) and returns the first rule in declared order
// whose pattern matches. An empty or absent payload always returns
// ok=false.
func (e *Engine) Scan(payload []byte) (name string, severity types.Severity, ok bool) {
	if len(payload) == 0 {
		return "", "", false
	}
	text := toUTF8Lossy(payload)
	for _, rule := range e.rules {
		if rule.pattern.MatchString(text) {
			return rule.name, rule.severity, true
		}
	}
	return "", "", false
}

func toUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
