package pipeline

import (
	"fmt"
	"time"
)

// Policy decides what a step failure does to the rest of the pipeline.
type Policy int

const (
	// Mandatory failures abort the pipeline.
	Mandatory Policy = iota
	// BestEffort failures are logged and the pipeline continues.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case Mandatory:
		return "mandatory"
	case BestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Step is one external transformation, run with the home directory as working directory.
type Step struct {
	Name    string
	Command string
	Args    []string
	Policy  Policy
}

// Output is what a step produced.
type Output struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Step names, in execution order.
const (
	StepInstallDependencies = "install-dependencies"
	StepExtractExcel        = "extract-excel"
	StepExtractPDF          = "extract-pdf"
	StepGenerateBehaviours  = "generate-behaviours"
	StepUpdateDashboard     = "update-dashboard"
	StepUploadDashboard     = "upload-dashboard"
)

// DefaultSteps is the behaviour ingestion chain: a best-effort dependency
// install followed by the five mandatory scripts found in each home directory.
func DefaultSteps(python string, pipPackages []string) []Step {
	install := append([]string{"-m", "pip", "install", "--user", "--break-system-packages"}, pipPackages...)
	return []Step{
		{Name: StepInstallDependencies, Command: python, Args: install, Policy: BestEffort},
		{Name: StepExtractExcel, Command: python, Args: []string{"getExcelInfo.py"}, Policy: Mandatory},
		{Name: StepExtractPDF, Command: python, Args: []string{"getPdfInfo.py"}, Policy: Mandatory},
		{Name: StepGenerateBehaviours, Command: python, Args: []string{"getBe.py"}, Policy: Mandatory},
		{Name: StepUpdateDashboard, Command: python, Args: []string{"update.py"}, Policy: Mandatory},
		{Name: StepUploadDashboard, Command: python, Args: []string{"upload_to_dashboard.py"}, Policy: Mandatory},
	}
}

// StepError is returned when a mandatory step fails.
type StepError struct {
	Step   string
	Output Output
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Diagnostics returns the tail of the captured output, stderr first.
func (e *StepError) Diagnostics(max int) string {
	out := e.Output.Stderr
	if out == "" {
		out = e.Output.Stdout
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
