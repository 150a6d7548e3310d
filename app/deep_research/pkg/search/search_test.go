package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want model.ErrorKind
	}{
		{"nil", nil, model.ErrorNone},
		{"cancelled", fmt.Errorf("request failed: %w", context.Canceled), model.ErrorCancelled},
		{"deadline", fmt.Errorf("request failed: %w", context.DeadlineExceeded), model.ErrorTimeout},
		{"timeout sentinel", fmt.Errorf("%w: upstream", ErrTimeout), model.ErrorTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), model.ErrorTimeout},
		{"rate limited", fmt.Errorf("%w (status 429)", ErrRateLimited), model.ErrorRateLimited},
		{"invalid", fmt.Errorf("%w (status 400)", ErrInvalidQuery), model.ErrorInvalidQuery},
		{"other", errors.New("boom"), model.ErrorTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}
