package engine

import (
	"fmt"

	"github.com/roach88/tokenstream/internal/ir"
)

// ResumePolicy decides who may resume a paused stream.
type ResumePolicy int

const (
	// ResumeSender lets only the sender resume.
	ResumeSender ResumePolicy = iota

	// ResumeEither lets the sender or the recipient resume.
	ResumeEither

	// ResumeRecipientAfter lets the recipient resume once
	// Policy.RecipientResumeDelay seconds have passed since the pause.
	ResumeRecipientAfter
)

var resumePolicyNames = map[ResumePolicy]string{
	ResumeSender:         "sender",
	ResumeEither:         "either",
	ResumeRecipientAfter: "recipient_after",
}

func (p ResumePolicy) String() string {
	if name, ok := resumePolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("resume_policy(%d)", int(p))
}

// ParseResumePolicy is the inverse of ResumePolicy.String.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	for p, name := range resumePolicyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown resume policy %q (want sender, either or recipient_after)", s)
}

// Policy holds opt-in behavior changes. The zero value keeps dust on
// naturally expired streams and lets only the sender resume.
type Policy struct {
	// SweepDust refunds the sender whatever a terminating withdrawal leaves
	// behind.
	SweepDust bool

	Resume ResumePolicy

	// RecipientResumeDelay is in seconds; used by ResumeRecipientAfter.
	RecipientResumeDelay int64
}

// mayResume reports whether caller may resume s, paused as p, at now.
func (pol Policy) mayResume(s ir.Stream, p ir.Paused, caller ir.Address, now ir.Timestamp) bool {
	if caller == s.Sender {
		return true
	}
	if caller != s.Recipient {
		return false
	}
	switch pol.Resume {
	case ResumeEither:
		return true
	case ResumeRecipientAfter:
		return now-p.PausedAt >= pol.RecipientResumeDelay
	default:
		return false
	}
}
