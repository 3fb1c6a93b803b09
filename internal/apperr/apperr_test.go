package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error", err: base, want: KindUnknown},
		{name: "not found", err: NotFound("get task", "task %s", "t1"), want: KindNotFound},
		{name: "wrapped transient", err: fmt.Errorf("cycle: %w", Transient("search", base)), want: KindTransientIO},
		{name: "validation", err: Validation("decide", "missing title"), want: KindValidation},
		{name: "config", err: ConfigurationMissing("places", "no api key"), want: KindConfigurationMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewKeepsChain(t *testing.T) {
	base := errors.New("connection reset")
	err := Transient("places search", base)

	assert.True(t, errors.Is(err, base))
	assert.True(t, Is(err, KindTransientIO))
	assert.False(t, Is(err, KindNotFound))
	assert.Contains(t, err.Error(), "places search")
	assert.Nil(t, New(KindNotFound, "noop", nil))
}
