package domain

import "time"

type SplitType string

const (
	SplitTypeEqual      SplitType = "EQUAL"
	SplitTypeCustom     SplitType = "CUSTOM"
	SplitTypePercentage SplitType = "PERCENTAGE"
)

type ParticipantStatus string

const (
	ParticipantStatusPending  ParticipantStatus = "PENDING"
	ParticipantStatusPaid     ParticipantStatus = "PAID"
	ParticipantStatusDeclined ParticipantStatus = "DECLINED"
)

// IsTerminal reports whether the participant has finished with the split.
func (s ParticipantStatus) IsTerminal() bool {
	return s == ParticipantStatusPaid || s == ParticipantStatusDeclined
}

// BillSplit is a shared expense split across participants. Participant
// amounts always sum exactly to TotalAmountUSDC; equal splits assign the
// division remainder to the organizer so no unit ever drifts.
type BillSplit struct {
	ID              string     `json:"id"`
	OrganizerID     int64      `json:"organizer_id"`
	Title           string     `json:"title"`
	TotalAmountUSDC int64      `json:"total_amount_usdc"`
	SplitType       SplitType  `json:"split_type"`
	IsComplete      bool       `json:"is_complete"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	Participants []BillSplitParticipant `json:"participants,omitempty"`
}

type BillSplitParticipant struct {
	ID          string            `json:"id"`
	BillSplitID string            `json:"bill_split_id"`
	UserID      int64             `json:"user_id"`
	AmountUSDC  int64             `json:"amount_usdc"`
	Status      ParticipantStatus `json:"status"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
}

// EqualShares divides total across n participants, handing the remainder to
// the first share (the organizer). Deterministic so shares always sum to the
// total.
func EqualShares(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := total / int64(n)
	rem := total % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += rem
	return shares
}
