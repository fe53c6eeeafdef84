package collab

import (
	"fmt"
	"strings"

	"github.com/kdb-tools/kdb/internal/exec"
)

// installHints maps default tool names to installation instructions.
var installHints = map[string]string{
	"ncbi-genome-download": "pip install ncbi-genome-download  (or: conda install -c bioconda ncbi-genome-download)",
	"kraken2-build":        "conda install -c bioconda kraken2  (see https://github.com/DerrickWood/kraken2)",
}

// MissingToolError lists collaborators that could not be found on PATH.
type MissingToolError struct {
	Tools []string
}

func (e *MissingToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "required tools not found in PATH: %s", strings.Join(e.Tools, ", "))
	for _, tool := range e.Tools {
		if hint, ok := installHints[tool]; ok {
			fmt.Fprintf(&b, "\n  %s: %s", tool, hint)
		}
	}
	return b.String()
}

// ToolStatus is the lookup result for one collaborator.
type ToolStatus struct {
	Name string
	Path string
	Err  error
}

// LookupTools resolves every tool on PATH.
func LookupTools(runner exec.CommandRunner, tools ...string) []ToolStatus {
	statuses := make([]ToolStatus, 0, len(tools))
	for _, tool := range tools {
		path, err := runner.LookPath(tool)
		statuses = append(statuses, ToolStatus{Name: tool, Path: path, Err: err})
	}
	return statuses
}

// CheckTools returns a *MissingToolError if any tool is not on PATH.
func CheckTools(runner exec.CommandRunner, tools ...string) error {
	var missing []string
	for _, s := range LookupTools(runner, tools...) {
		if s.Err != nil {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		return &MissingToolError{Tools: missing}
	}
	return nil
}
