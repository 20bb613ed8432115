package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidDomain_IsErrInvalidDomain(t *testing.T) {
	err := InvalidDomain("contains a scheme")
	assert.True(t, errors.Is(err, ErrInvalidDomain))
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestRateLimited_IsErrRateLimited(t *testing.T) {
	err := RateLimited("too many requests from this IP")
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestUsageLimitExceeded_IsErrUsageLimitExceeded(t *testing.T) {
	err := UsageLimitExceeded("upgrade to pro for more scans")
	assert.True(t, errors.Is(err, ErrUsageLimitExceeded))
}
