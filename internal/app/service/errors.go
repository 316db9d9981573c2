package service

import (
	"errors"
	"fmt"

	"github.com/linkvault/linkvault/internal/app/risk"
)

var (
	// ErrInvalidURL rejects input that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidCustomCode rejects custom codes outside the allowed length or charset.
	ErrInvalidCustomCode = errors.New("invalid custom code")

	// ErrInvalidExpiry rejects negative expiry day counts.
	ErrInvalidExpiry = errors.New("expiry days must not be negative")

	// ErrDuplicateCode signals a custom code that is already taken.
	ErrDuplicateCode = errors.New("custom code already exists")

	// ErrGenerationExhausted signals that every generation attempt collided.
	// Retrying the whole request is safe since generation resamples randomness.
	ErrGenerationExhausted = errors.New("failed to generate unique short code")

	// ErrLinkNotFound signals an unknown or inactive short code.
	ErrLinkNotFound = errors.New("link not found")

	// ErrLinkExpired signals a known code whose expiry has passed.
	ErrLinkExpired = errors.New("link has expired")
)

// SuspiciousURLError rejects creation of a URL that scored over the risk
// threshold. It carries the full scoring result so callers can surface the
// score, level and reasons to the user.
type SuspiciousURLError struct {
	Result risk.Result
}

func (e *SuspiciousURLError) Error() string {
	return fmt.Sprintf("url flagged as potentially malicious (risk score %d, level %s)",
		e.Result.RiskScore, e.Result.RiskLevel)
}
