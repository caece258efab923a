package promote

import (
	"strings"

	"github.com/biomech/coretex/internal/model"
)

// Step is a single git invocation of a promotion.
type Step struct {
	// Name identifies the step in logs and results.
	Name string `json:"name"`

	// Args are the git arguments, without the leading "git".
	Args []string `json:"args"`
}

// String renders the step as a shell command.
func (s Step) String() string {
	return "git " + strings.Join(s.Args, " ")
}

// Step names.
const (
	StepFetch         = "fetch"
	StepCheckoutStage = "checkout-stage"
	StepRebaseStage   = "rebase-stage"
	StepPushStage     = "push-stage"
	StepCheckoutMain  = "checkout-main"
	StepRebaseMain    = "rebase-main"
	StepPushMain      = "push-main"
)

// Plan returns the ordered git steps promoting to dest. shallow selects a
// fetch that also unshallows the clone, since a rebase needs the merge base.
//
// The stage block always comes first; the main block is appended only for
// the main destination and rebases onto the local stage that was just
// pushed.
func (p Policy) Plan(dest model.DestinationBranch, shallow bool) []Step {
	fetch := []string{"fetch", "--prune", p.Remote}
	if shallow {
		fetch = []string{"fetch", "--prune", "--unshallow", p.Remote}
	}

	steps := make([]Step, 0, 7)
	steps = append(steps,
		Step{Name: StepFetch, Args: fetch},
		Step{Name: StepCheckoutStage, Args: []string{"checkout", "-B", p.Stage, p.Remote + "/" + p.Stage}},
		Step{Name: StepRebaseStage, Args: []string{"rebase", p.Remote + "/" + p.Source}},
		Step{Name: StepPushStage, Args: []string{"push", "--force", p.Remote, p.Stage}},
	)

	if dest.IncludesMain() {
		steps = append(steps,
			Step{Name: StepCheckoutMain, Args: []string{"checkout", "-B", p.Main, p.Remote + "/" + p.Main}},
			Step{Name: StepRebaseMain, Args: []string{"rebase", p.Stage}},
			Step{Name: StepPushMain, Args: []string{"push", "--force", p.Remote, p.Main}},
		)
	}
	return steps
}
