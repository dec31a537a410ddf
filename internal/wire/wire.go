// Package wire defines the submission contract shared by the agent and the
// collector.
package wire

import "fmt"

// SecretHeader is the HTTP header carrying the shared secret, when one is
// configured on both sides.
const SecretHeader = "X-Secret-Key"

// Submission is one reportable usage session: how long an executable ran.
// Name is the embedded product name when the agent could resolve one, and
// null on the wire otherwise.
type Submission struct {
	Duration   uint64  `json:"duration"`
	Executable string  `json:"executable"`
	Name       *string `json:"name"`
}

// Display returns a short human-readable form for log lines, preferring the
// resolved product name over the raw executable name.
func (s Submission) Display() string {
	name := s.Executable
	if s.Name != nil {
		name = *s.Name
	}
	return fmt.Sprintf("%s (%ds)", name, s.Duration)
}

// Status values the collector reports back in a SubmissionResponse.
const (
	StatusOK              = "ok"
	StatusUnauthenticated = "unauthenticated"
	StatusDatabaseError   = "databaseError"
)

// SubmissionResponse is the collector's reply body for /submit.
type SubmissionResponse struct {
	Status string `json:"status"`
}

// CleanName truncates a string at the first NUL byte. Version-info blocks in
// some executables run past the string terminator, so resolved product names
// can arrive with trailing garbage after a NUL.
func CleanName(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] == 0 {
			return value[:i]
		}
	}
	return value
}
