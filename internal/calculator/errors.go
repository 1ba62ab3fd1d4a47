package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
)

// RejectReason categorizes why a proposed mutation was rejected.
type RejectReason string

const (
	// ReasonAmountMismatch indicates split amounts do not sum to the expense
	// amount within tolerance.
	ReasonAmountMismatch RejectReason = "AMOUNT_MISMATCH"

	// ReasonPercentageMismatch indicates percentages do not sum to 100.
	ReasonPercentageMismatch RejectReason = "PERCENTAGE_MISMATCH"

	// ReasonDuplicateParticipant indicates a user appears twice in a split set.
	ReasonDuplicateParticipant RejectReason = "DUPLICATE_PARTICIPANT"

	// ReasonEmptySplitSet indicates an expense with no splits.
	ReasonEmptySplitSet RejectReason = "EMPTY_SPLIT_SET"

	// ReasonNonMemberParticipant indicates a split references a user who is
	// not an active member of the expense's group.
	ReasonNonMemberParticipant RejectReason = "NON_MEMBER_PARTICIPANT"

	// ReasonNegativeSplit indicates a negative owed amount or a percentage
	// outside [0,100].
	ReasonNegativeSplit RejectReason = "NEGATIVE_SPLIT"

	// ReasonSelfSettlement indicates a settlement from a user to themselves.
	ReasonSelfSettlement RejectReason = "SELF_SETTLEMENT"

	// ReasonNonPositiveAmount indicates a zero or negative expense or
	// settlement amount.
	ReasonNonPositiveAmount RejectReason = "NON_POSITIVE_AMOUNT"

	// ReasonUnknownSplitType indicates a split type outside
	// {equal, exact, percentage}.
	ReasonUnknownSplitType RejectReason = "UNKNOWN_SPLIT_TYPE"
)

// RejectionError is a typed rejection returned before any balance mutation.
// The caller corrects the input and resubmits; nothing is partially applied.
type RejectionError struct {
	// Reason identifies the rejection category.
	Reason RejectReason

	// Message is a human-readable description.
	Message string

	// UserID identifies the offending participant, where applicable.
	UserID string

	// Expected and Actual carry the amounts for mismatch rejections.
	Expected money.Money
	Actual   money.Money
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("%s: %s (user=%s)", e.Reason, e.Message, e.UserID)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// IsRejection reports whether err is (or wraps) a RejectionError.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// ReasonOf extracts the rejection reason from err, or "" if err is not a
// rejection.
func ReasonOf(err error) RejectReason {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

func newAmountMismatch(expected, actual money.Money) *RejectionError {
	return &RejectionError{
		Reason:   ReasonAmountMismatch,
		Message:  fmt.Sprintf("splits sum to %s, expense amount is %s (diff %s)", actual, expected, expected.Sub(actual).Abs()),
		Expected: expected,
		Actual:   actual,
	}
}

func newPercentageMismatch(sum decimal.Decimal) *RejectionError {
	return &RejectionError{
		Reason:  ReasonPercentageMismatch,
		Message: fmt.Sprintf("percentages sum to %s, must sum to 100", sum.String()),
	}
}

func newDuplicateParticipant(userID string) *RejectionError {
	return &RejectionError{
		Reason:  ReasonDuplicateParticipant,
		Message: "user appears more than once in split set",
		UserID:  userID,
	}
}

func newEmptySplitSet() *RejectionError {
	return &RejectionError{
		Reason:  ReasonEmptySplitSet,
		Message: "expense has no splits",
	}
}

func newNonMemberParticipant(userID string) *RejectionError {
	return &RejectionError{
		Reason:  ReasonNonMemberParticipant,
		Message: "user is not an active member of the expense's group",
		UserID:  userID,
	}
}

func newUnknownSplitType(splitType models.SplitType) *RejectionError {
	return &RejectionError{
		Reason:  ReasonUnknownSplitType,
		Message: fmt.Sprintf("unknown split type %q", splitType),
	}
}

func newNegativeSplit(userID, msg string) *RejectionError {
	return &RejectionError{
		Reason:  ReasonNegativeSplit,
		Message: msg,
		UserID:  userID,
	}
}

// NewSelfSettlement builds the rejection for a settlement whose payer and
// receiver are the same user.
func NewSelfSettlement(userID string) *RejectionError {
	return &RejectionError{
		Reason:  ReasonSelfSettlement,
		Message: "settlement from a user to themselves",
		UserID:  userID,
	}
}

// NewNonPositiveAmount builds the rejection for a zero or negative amount.
func NewNonPositiveAmount(actual money.Money) *RejectionError {
	return &RejectionError{
		Reason:  ReasonNonPositiveAmount,
		Message: fmt.Sprintf("amount must be positive, got %s", actual),
		Actual:  actual,
	}
}
