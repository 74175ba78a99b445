// Copyright (c) 2014-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package consensus

import "fmt"

// ErrorCode identifies a kind of error returned while ingesting a
// block or validating a transaction.
type ErrorCode int

// Error codes surfaced by the consensus engine. Per-transaction
// verdicts (DoubleSpend, BadSignature, ...) never propagate as errors
// — they are recorded in a Vertex's validity vector — but are listed
// here as named constants so callers and tests can refer to them
// uniformly.
const (
	ErrDuplicateBlock ErrorCode = iota
	ErrBadVersion
	ErrBadProofSize
	ErrHighHash
	ErrTimeTooNew
	ErrTimeTooOld
	ErrBlockTooBig
	ErrDuplicateTx
	ErrBadMerkleRoot
	ErrEmptyTxInputs
	ErrBadFirstRegistrationShape
	ErrDifficultyMismatch
	ErrTooOldMilestoneParent
	ErrDoubleSpend
	ErrBadSignature
	ErrBadFeeRange
	ErrBadDistance
	ErrDoubleRedemption
	ErrRedemptionOverflow
	ErrMilestoneHeightMismatch
)

var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:           "ErrDuplicateBlock",
	ErrBadVersion:               "ErrBadVersion",
	ErrBadProofSize:             "ErrBadProofSize",
	ErrHighHash:                 "ErrHighHash",
	ErrTimeTooNew:               "ErrTimeTooNew",
	ErrTimeTooOld:               "ErrTimeTooOld",
	ErrBlockTooBig:              "ErrBlockTooBig",
	ErrDuplicateTx:              "ErrDuplicateTx",
	ErrBadMerkleRoot:            "ErrBadMerkleRoot",
	ErrEmptyTxInputs:            "ErrEmptyTxInputs",
	ErrBadFirstRegistrationShape: "ErrBadFirstRegistrationShape",
	ErrDifficultyMismatch:       "ErrDifficultyMismatch",
	ErrTooOldMilestoneParent:    "ErrTooOldMilestoneParent",
	ErrDoubleSpend:              "ErrDoubleSpend",
	ErrBadSignature:             "ErrBadSignature",
	ErrBadFeeRange:              "ErrBadFeeRange",
	ErrBadDistance:              "ErrBadDistance",
	ErrDoubleRedemption:         "ErrDoubleRedemption",
	ErrRedemptionOverflow:       "ErrRedemptionOverflow",
	ErrMilestoneHeightMismatch:  "ErrMilestoneHeightMismatch",
}

// String returns the stringized name of the error code.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies an error resulting from a consensus rule
// violation: a block or transaction is structurally or semantically
// invalid.
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface.
func (e RuleError) Error() string {
	return e.Description
}

func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}
