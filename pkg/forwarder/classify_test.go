package forwarder

import (
	"testing"

	"ssw-logs-capture/pkg/retry"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   retry.Outcome
	}{
		{0, retry.OutcomeRetryable},
		{204, retry.OutcomeSuccess},
		{200, retry.OutcomeSuccess},
		{400, retry.OutcomeFatal},
		{404, retry.OutcomeFatal},
		{429, retry.OutcomeRetryable},
		{500, retry.OutcomeRetryable},
		{503, retry.OutcomeRetryable},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classifyStatus(c.status), "status %d", c.status)
	}
}
