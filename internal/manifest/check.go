package manifest

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Rules are the expectations Check verifies.
type Rules struct {
	BuildBackend string

	// MinPython is the lowest Python release requires-python must admit
	// as its lower bound.
	MinPython Version

	// Dependencies must all be declared, compared by NormalizeName.
	Dependencies []string

	// Pins maps a normalized dependency name to the only specifier it may
	// carry.
	Pins map[string]Specifier
}

// DefaultRules describe the coretex SDK manifest.
func DefaultRules() Rules {
	return Rules{
		BuildBackend: "setuptools.build_meta",
		MinPython:    Version{3, 8},
		Dependencies: []string{
			"requests",
			"inflection",
			"pillow",
			"numpy",
			"scikit-image",
			"shapely",
			"protobuf",
			"typed-argument-parser",
			"termcolor",
			"typing-extensions",
			"psutil",
			"py3nvml",
		},
		Pins: map[string]Specifier{
			"protobuf": {Op: "~=", Version: "3.19.0"},
		},
	}
}

// Finding is one problem found by Check.
type Finding struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f Finding) String() string { return f.Field + ": " + f.Message }

// Check verifies m against rules and returns every problem found. An empty
// result means the manifest is valid.
func Check(m *Manifest, rules Rules) []Finding {
	var findings []Finding
	add := func(field, format string, args ...any) {
		findings = append(findings, Finding{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(m.Project.Name) == "" {
		add("project.name", "must not be empty")
	}
	if strings.TrimSpace(m.Project.Version) == "" {
		add("project.version", "must not be empty")
	}
	if rules.BuildBackend != "" && m.BuildSystem.BuildBackend != rules.BuildBackend {
		add("build-system.build-backend", "expected %q, got %q", rules.BuildBackend, m.BuildSystem.BuildBackend)
	}

	if rules.MinPython != nil {
		checkPython(m.Project.RequiresPython, rules.MinPython, add)
	}

	declared := make(map[string]Requirement, len(m.Project.Dependencies))
	for _, dep := range m.Project.Dependencies {
		r, err := ParseRequirement(dep)
		if err != nil {
			add("project.dependencies", "%v", err)
			continue
		}
		declared[NormalizeName(r.Name)] = r
	}

	for _, name := range rules.Dependencies {
		if _, ok := declared[NormalizeName(name)]; !ok {
			add("project.dependencies", "missing required dependency %q", name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(rules.Pins)) {
		spec := rules.Pins[name]
		r, ok := declared[NormalizeName(name)]
		if !ok {
			continue
		}
		if !r.Pinned(spec) {
			add("project.dependencies", "%s must be pinned to %s, got %q", name, spec, r.String())
		}
	}

	return findings
}

func checkPython(requires string, minimum Version, add func(field, format string, args ...any)) {
	const field = "project.requires-python"
	if strings.TrimSpace(requires) == "" {
		add(field, "must declare a lower bound")
		return
	}
	specs, err := ParseSpecifiers(requires)
	if err != nil {
		add(field, "%v", err)
		return
	}
	lower, ok := LowerBound(specs)
	if !ok {
		add(field, "%q has no lower bound", requires)
		return
	}
	if lower.Compare(minimum) < 0 {
		add(field, "lower bound %q is below %s", requires, minimum)
	}
}

// String renders v as "3.8".
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ".")
}
