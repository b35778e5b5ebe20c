package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// predicate tests a lowercased field value.
type predicate interface {
	match(s string) bool
	String() string
}

type containsPredicate string

func (p containsPredicate) match(s string) bool { return strings.Contains(s, string(p)) }
func (p containsPredicate) String() string     { return fmt.Sprintf("contains %q", string(p)) }

type equalsPredicate string

func (p equalsPredicate) match(s string) bool { return s == string(p) }
func (p equalsPredicate) String() string     { return fmt.Sprintf("equals %q", string(p)) }

type regexPredicate struct {
	re *regexp.Regexp
}

func (p regexPredicate) match(s string) bool { return p.re.MatchString(s) }
func (p regexPredicate) String() string     { return fmt.Sprintf("regex %q", p.re.String()) }

func newContains(s string) (predicate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, fmt.Errorf("empty contains pattern")
	}
	return containsPredicate(s), nil
}

func newEquals(s string) (predicate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, fmt.Errorf("empty equals pattern")
	}
	return equalsPredicate(s), nil
}

func newRegex(s string) (predicate, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty regex pattern")
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", s, err)
	}
	return regexPredicate{re: re}, nil
}

func compileAll(patterns []string, build func(string) (predicate, error)) ([]predicate, error) {
	out := make([]predicate, 0, len(patterns))
	for _, p := range patterns {
		pr, err := build(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, nil
}

func anyMatch(preds []predicate, s string) bool {
	for _, p := range preds {
		if p.match(s) {
			return true
		}
	}
	return false
}
