package goIssuer

// MissingRecordPolicy decides which verification outcome leads to a signed token.
//
// The legacy service signed a token only when the identity lookup returned no
// record. Whether that was an inversion bug or a guest convention is unresolved,
// so both behaviors exist and the choice is explicit.
type MissingRecordPolicy uint8

const (
	// RejectMissingRecord issues only for a resolved identity. This is the default.
	RejectMissingRecord MissingRecordPolicy = iota
	// IssueOnMissingRecord reproduces the legacy literal branch: an absent record
	// yields a token over the all-sentinel identity and a found record is refused.
	IssueOnMissingRecord
)

func (p MissingRecordPolicy) String() string {
	switch p {
	case RejectMissingRecord:
		return "reject_missing_record"
	case IssueOnMissingRecord:
		return "issue_on_missing_record"
	default:
		return "unknown"
	}
}

func (p MissingRecordPolicy) valid() bool {
	return p == RejectMissingRecord || p == IssueOnMissingRecord
}

// shouldIssue is the single branch condition between verification and signing.
func (p MissingRecordPolicy) shouldIssue(found bool) bool {
	if p == IssueOnMissingRecord {
		return !found
	}
	return found
}
