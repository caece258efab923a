package promote

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/biomech/coretex/internal/model"
)

// DestinationInput is the workflow_dispatch input holding the destination.
const DestinationInput = "destination_branch"

// Policy is the set of rules a promotion is checked against, together with
// the branch names it operates on.
type Policy struct {
	// AllowedActor may always promote. Empty disables the check so only
	// Owner may promote.
	AllowedActor string

	// Owner is the repository owner, who may always promote.
	Owner string

	// Options are the destinations the workflow input accepts.
	Options []model.DestinationBranch

	// Default is used when no destination is given.
	Default model.DestinationBranch

	Source string
	Stage  string
	Main   string
	Remote string
}

// DefaultPolicy returns the policy used when no workflow file is read.
func DefaultPolicy() Policy {
	return Policy{
		Options: model.AllDestinations(),
		Default: model.DefaultDestination,
		Source:  "develop",
		Stage:   string(model.DestinationStage),
		Main:    string(model.DestinationMain),
		Remote:  "origin",
	}
}

// workflowFile covers the parts of a GitHub Actions workflow the policy
// reads. yaml.v3 keeps the "on" key as a string.
type workflowFile struct {
	On struct {
		WorkflowDispatch *struct {
			Inputs map[string]workflowInput `yaml:"inputs"`
		} `yaml:"workflow_dispatch"`
	} `yaml:"on"`
	Jobs map[string]struct {
		If    string `yaml:"if"`
		Steps []struct {
			If string `yaml:"if"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

type workflowInput struct {
	Type    string   `yaml:"type"`
	Default string   `yaml:"default"`
	Options []string `yaml:"options"`
}

// actorExpr matches the actor comparison in a job or step condition, e.g.
// `github.actor != 'octocat'`.
var actorExpr = regexp.MustCompile(`github\.actor\s*[!=]=\s*'([^']+)'`)

// LoadPolicy reads the destination options and default from the
// workflow_dispatch input of the workflow at path. The allowed actor is
// taken from a `github.actor` comparison in a job or step condition when one
// is present. All other fields keep DefaultPolicy values.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read workflow %s", path), err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return Policy{}, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid workflow %s", path), err)
	}
	return p, nil
}

// ParsePolicy is LoadPolicy for in-memory workflow YAML.
func ParsePolicy(data []byte) (Policy, error) {
	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return Policy{}, fmt.Errorf("failed to parse workflow: %w", err)
	}

	if wf.On.WorkflowDispatch == nil {
		return Policy{}, fmt.Errorf("workflow has no workflow_dispatch trigger")
	}
	input, ok := wf.On.WorkflowDispatch.Inputs[DestinationInput]
	if !ok {
		return Policy{}, fmt.Errorf("workflow_dispatch has no %q input", DestinationInput)
	}

	p := DefaultPolicy()
	if len(input.Options) > 0 {
		p.Options = p.Options[:0:0]
		for _, raw := range input.Options {
			d := model.DestinationBranch(raw)
			if !d.IsValid() {
				return Policy{}, fmt.Errorf("unsupported destination option %q", raw)
			}
			if !slices.Contains(p.Options, d) {
				p.Options = append(p.Options, d)
			}
		}
	}
	if input.Default != "" {
		d := model.DestinationBranch(input.Default)
		if !slices.Contains(p.Options, d) {
			return Policy{}, fmt.Errorf("default destination %q is not one of the options", input.Default)
		}
		p.Default = d
	}

	p.AllowedActor = findAllowedActor(wf)
	return p, nil
}

// findAllowedActor returns the first actor named in a condition, scanning
// jobs in name order so the result is stable.
func findAllowedActor(wf workflowFile) string {
	names := make([]string, 0, len(wf.Jobs))
	for name := range wf.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job := wf.Jobs[name]
		conds := []string{job.If}
		for _, s := range job.Steps {
			conds = append(conds, s.If)
		}
		for _, c := range conds {
			if m := actorExpr.FindStringSubmatch(c); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// Authorize checks that actor may promote: it must equal AllowedActor or
// Owner. An empty actor is never authorized.
func (p Policy) Authorize(actor string) error {
	if actor != "" && (actor == p.AllowedActor || actor == p.Owner) {
		return nil
	}
	if actor == "" {
		return model.NewCLIError(model.ExitUnauthorized, "no actor given; cannot authorize promotion")
	}
	return model.NewCLIError(model.ExitUnauthorized,
		fmt.Sprintf("actor %q is not allowed to promote branches", actor))
}

// ValidateDestination resolves raw into a destination. Empty input yields
// Default; anything outside Options is rejected. The comparison is exact.
func (p Policy) ValidateDestination(raw string) (model.DestinationBranch, error) {
	d := model.DestinationBranch(raw)
	if d == "" {
		d = p.Default
	}
	if !slices.Contains(p.Options, d) {
		valid := make([]string, len(p.Options))
		for i, o := range p.Options {
			valid[i] = string(o)
		}
		return "", model.NewCLIError(model.ExitInvalidBranch,
			fmt.Sprintf("invalid destination branch %q (valid: %s)", raw, strings.Join(valid, ", ")))
	}
	return d, nil
}
