// Package deps reports availability of the external binaries heifconv
// depends on.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency heifconv relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Default returns the requirements for a configured codec binary.
func Default(codecBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "HEIC codec",
			Command:     codecBinary,
			Description: "decodes HEIC input and encodes PNG output",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Detail = path
		results = append(results, status)
	}
	return results
}
