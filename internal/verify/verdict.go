package verify

import "fmt"

// Cause classifies a failed verification.
type Cause string

const (
	CauseScriptError   Cause = "script_error"
	CauseRequestFailed Cause = "request_failed"
	CauseCrash         Cause = "crash"
	CauseConsoleError  Cause = "console_error"
	CauseTimeout       Cause = "timeout"
	CauseUnexpectedLog Cause = "unexpected_log"
)

// PassPrefix marks a console line as a verification signal.
const PassPrefix = "PASS!"

// OracleLine is the exact console line a passing page logs.
func OracleLine(modern bool) string {
	return fmt.Sprintf("PASS! (modernBrowser = %t)", modern)
}

// Verdict is the single outcome of a verification session.
type Verdict struct {
	Passed    bool
	Line      string // the matching console line, on success
	Cause     Cause  // on failure
	Message   string // on failure
	SessionID string
}

// Success builds a passing verdict.
func Success(line string) Verdict {
	return Verdict{Passed: true, Line: line}
}

// Failure builds a failing verdict.
func Failure(cause Cause, message string) Verdict {
	return Verdict{Cause: cause, Message: message}
}

func (v Verdict) String() string {
	if v.Passed {
		return "pass: " + v.Line
	}
	return fmt.Sprintf("fail (%s): %s", v.Cause, v.Message)
}

// Err returns nil for a passing verdict and a *VerificationError otherwise.
func (v Verdict) Err() error {
	if v.Passed {
		return nil
	}
	return &VerificationError{Cause: v.Cause, Message: v.Message}
}

// VerificationError is a failed verdict as an error. It is retryable.
type VerificationError struct {
	Cause   Cause
	Message string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed (%s): %s", e.Cause, e.Message)
}

// TransportError reports that the browser could not be launched, reached
// or driven. It is always retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport tags the error for the retry supervisor.
func (e *TransportError) Transport() bool { return true }
