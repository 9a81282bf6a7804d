package model

import "errors"

// Kind - 실패 분류
type Kind int

const (
	KindUnknown Kind = iota
	KindPolicy
	KindUpstream
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindPolicy:
		return "policy_rejection"
	case KindUpstream:
		return "upstream_model_failure"
	case KindNotFound:
		return "resource_not_found"
	case KindPersistence:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// 사용자가 고칠 수 있는 거절
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrEmptyPrompt         = errors.New("prompt is required")
	ErrPromptTooLong       = errors.New("prompt too long")
	ErrInvalidAspectRatio  = errors.New("invalid aspect ratio")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrContactRequired     = errors.New("contact is required")
)

// 모델 호출 실패
var (
	ErrUpstreamModel   = errors.New("upstream model call failed")
	ErrNoImageProduced = errors.New("no image generated")
)

// 리소스 없음
var (
	ErrReferenceMissing   = errors.New("reference image missing")
	ErrGenerationNotFound = errors.New("generation not found")
)

// 저장소 실패
var (
	ErrLedgerUnavailable = errors.New("credit ledger unavailable")
	ErrPersistence       = errors.New("persistence failure")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnauthorized, KindPolicy},
	{ErrInsufficientCredits, KindPolicy},
	{ErrRateLimited, KindPolicy},
	{ErrEmptyPrompt, KindPolicy},
	{ErrPromptTooLong, KindPolicy},
	{ErrInvalidAspectRatio, KindPolicy},
	{ErrInvalidAmount, KindPolicy},
	{ErrContactRequired, KindPolicy},
	{ErrUpstreamModel, KindUpstream},
	{ErrNoImageProduced, KindUpstream},
	{ErrReferenceMissing, KindNotFound},
	{ErrGenerationNotFound, KindNotFound},
	{ErrLedgerUnavailable, KindPersistence},
	{ErrPersistence, KindPersistence},
}

// KindOf - wrap 된 에러를 분류
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
