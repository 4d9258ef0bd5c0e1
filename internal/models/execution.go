package models

// Verdict classifies a sandbox run.
type Verdict string

const (
	VerdictAccepted          Verdict = "accepted"
	VerdictCompilationError  Verdict = "compilation_error"
	VerdictRuntimeError      Verdict = "runtime_error"
	VerdictTimeLimitExceeded Verdict = "time_limit_exceeded"
	VerdictError             Verdict = "error"
	VerdictNeedsInput        Verdict = "needs_input"
)

// ExecutionResult is the transient outcome of running a coding answer. Every
// output field is nil until the sandbox reported it; a non-nil empty string
// means the sandbox returned empty output.
type ExecutionResult struct {
	Verdict       Verdict `json:"verdict"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        *string `json:"status"`
	ErrorMessage  *string `json:"error_message"`
	Token         string  `json:"token,omitempty"`
}

func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Verdict == VerdictAccepted
}
