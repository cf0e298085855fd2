package enums

import "fmt"

// DocumentStatus describes where a document sits in its derivation lifecycle.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusError      DocumentStatus = "error"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusUploaded,
	DocumentStatusProcessing,
	DocumentStatusCompleted,
	DocumentStatusError,
}

// documentStatusPredecessors lists, for each target status, the statuses a
// record may hold immediately before moving to it. Nothing leads back to
// uploaded, and completed/error are terminal.
var documentStatusPredecessors = map[DocumentStatus][]DocumentStatus{
	DocumentStatusProcessing: {DocumentStatusUploaded},
	DocumentStatusCompleted:  {DocumentStatusUploaded, DocumentStatusProcessing},
	DocumentStatusError:      {DocumentStatusUploaded, DocumentStatusProcessing},
}

// String returns the literal string for the status.
func (s DocumentStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusError
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, prev := range documentStatusPredecessors[next] {
		if prev == s {
			return true
		}
	}
	return false
}

// DocumentStatusPredecessors returns the statuses allowed immediately before next.
func DocumentStatusPredecessors(next DocumentStatus) []DocumentStatus {
	prev := documentStatusPredecessors[next]
	out := make([]DocumentStatus, len(prev))
	copy(out, prev)
	return out
}

// ParseDocumentStatus converts raw input into a DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	for _, candidate := range validDocumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}
