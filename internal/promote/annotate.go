package promote

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/biomech/coretex/internal/model"
)

// Annotate writes err as a GitHub Actions error annotation:
//
//	::error title=Unauthorized actor::actor "x" is not allowed to promote branches
//
// The runner renders such lines as errors on the workflow summary page.
func Annotate(w io.Writer, err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "::error title=%s::%s\n", escapeProperty(annotationTitle(err)), escapeData(err.Error()))
}

func annotationTitle(err error) string {
	var cliErr *model.CLIError
	if !errors.As(err, &cliErr) {
		return "Promotion failed"
	}
	switch cliErr.Code {
	case model.ExitUnauthorized:
		return "Unauthorized actor"
	case model.ExitInvalidBranch:
		return "Invalid destination branch"
	case model.ExitConfigError:
		return "Invalid workflow"
	default:
		return "Promotion failed"
	}
}

// escapeData escapes an annotation message.
func escapeData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

// escapeProperty escapes an annotation property value, which additionally
// may not contain ':' or ','.
func escapeProperty(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C").Replace(s)
}
