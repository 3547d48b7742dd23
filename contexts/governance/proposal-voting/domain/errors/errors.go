package errors

import "errors"

var (
	ErrValidation        = errors.New("invalid proposal input")
	ErrNotFound          = errors.New("proposal not found")
	ErrConflict          = errors.New("proposal conflict")
	ErrDuplicateVoter    = errors.New("voter already voted on proposal")
	ErrUnknownRiskLevel  = errors.New("unknown risk level")
	ErrUnknownVoter      = errors.New("unknown voter")
	ErrVoterFailure      = errors.New("voter failed to produce a vote")
	ErrConfiguration     = errors.New("invalid governance configuration")
	ErrInvalidListFilter = errors.New("invalid proposal list filter")
)
