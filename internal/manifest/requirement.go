package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Requirement is a parsed dependency specifier such as
// `protobuf~=3.19.0` or `requests[socks]>=2.0,<3; python_version>"3.8"`.
type Requirement struct {
	Name       string      `json:"name"`
	Extras     []string    `json:"extras,omitempty"`
	Specifiers []Specifier `json:"specifiers,omitempty"`
	Marker     string      `json:"marker,omitempty"`
}

// Specifier is one version clause, e.g. {Op: "~=", Version: "3.19.0"}.
type Specifier struct {
	Op      string `json:"op"`
	Version string `json:"version"`
}

func (s Specifier) String() string { return s.Op + s.Version }

// String renders the requirement back in its canonical short form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	for i, s := range r.Specifiers {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(s.String())
	}
	if r.Marker != "" {
		b.WriteString("; " + r.Marker)
	}
	return b.String()
}

// Pinned reports whether r carries exactly spec.
func (r Requirement) Pinned(spec Specifier) bool {
	return len(r.Specifiers) == 1 && r.Specifiers[0] == spec
}

var (
	requirementRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:\[([^\]]*)\])?\s*(.*)$`)
	specifierRe   = regexp.MustCompile(`^(~=|===|==|!=|<=|>=|<|>)\s*([A-Za-z0-9.*+!_-]+)$`)
	separatorRe   = regexp.MustCompile(`[-_.]+`)
)

// ParseRequirement parses a dependency string. URL requirements
// (`name @ url`) are not supported.
func ParseRequirement(s string) (Requirement, error) {
	raw := strings.TrimSpace(s)
	spec, marker, _ := strings.Cut(raw, ";")

	m := requirementRe.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return Requirement{}, fmt.Errorf("invalid requirement %q", s)
	}

	r := Requirement{Name: m[1], Marker: strings.TrimSpace(marker)}
	if m[2] != "" {
		for _, e := range strings.Split(m[2], ",") {
			if e = strings.TrimSpace(e); e != "" {
				r.Extras = append(r.Extras, e)
			}
		}
	}

	rest := strings.TrimSpace(m[3])
	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
	if strings.HasPrefix(rest, "@") {
		return Requirement{}, fmt.Errorf("invalid requirement %q: url requirements are not supported", s)
	}
	specs, err := ParseSpecifiers(rest)
	if err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
	}
	r.Specifiers = specs
	return r, nil
}

// NormalizeName lowercases a distribution name and collapses runs of "-",
// "_" and "." into "-", so "Typing_Extensions" matches "typing-extensions".
func NormalizeName(name string) string {
	return separatorRe.ReplaceAllString(strings.ToLower(name), "-")
}

// Version is a dotted numeric release, e.g. 3.8 → [3 8].
type Version []int

// ParseVersion reads the numeric release segment of v. Suffixes such as
// "rc1" or ".*" end the release segment.
func ParseVersion(v string) (Version, error) {
	var out Version
	for _, part := range strings.Split(v, ".") {
		digits := part
		if i := strings.IndexFunc(part, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
			digits = part[:i]
		}
		if digits == "" {
			break
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q: %w", v, err)
		}
		out = append(out, n)
		if len(digits) != len(part) {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("invalid version %q", v)
	}
	return out, nil
}

// Compare returns -1, 0 or 1. Missing components count as zero.
func (v Version) Compare(o Version) int {
	for i := 0; i < max(len(v), len(o)); i++ {
		var a, b int
		if i < len(v) {
			a = v[i]
		}
		if i < len(o) {
			b = o[i]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// LowerBound returns the smallest version admitted by specs, or false when
// specs have no lower bound.
func LowerBound(specs []Specifier) (Version, bool) {
	var best Version
	for _, s := range specs {
		switch s.Op {
		case ">=", "~=", "==", "===", ">":
		default:
			continue
		}
		v, err := ParseVersion(s.Version)
		if err != nil {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}
	return best, best != nil
}

// ParseSpecifiers parses a bare specifier set such as ">=3.8,<4".
func ParseSpecifiers(s string) ([]Specifier, error) {
	var out []Specifier
	for _, clause := range strings.Split(s, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		sm := specifierRe.FindStringSubmatch(clause)
		if sm == nil {
			return nil, fmt.Errorf("invalid version specifier %q", clause)
		}
		out = append(out, Specifier{Op: sm[1], Version: sm[2]})
	}
	return out, nil
}
