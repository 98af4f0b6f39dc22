package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	req := NewRequest(AgentPolicy, "search_policy", map[string]any{"query": "returns"})
	assert.NoError(t, req.Validate())

	assert.ErrorIs(t, Request{TargetAgent: "mystery", Task: "x"}.Validate(), ErrContractViolation)
	assert.ErrorIs(t, Request{TargetAgent: AgentPolicy}.Validate(), ErrContractViolation)
}

func TestRequestWithMetadataDoesNotMutateOriginal(t *testing.T) {
	orig := NewRequest(AgentShipping, "get_status", nil)
	derived := orig.WithMetadata("session_id", "s1")

	assert.Equal(t, "s1", derived.Metadata["session_id"])
	_, ok := orig.Metadata["session_id"]
	assert.False(t, ok)
}

func TestResponseValidate(t *testing.T) {
	md := Metadata{LatencyMS: 12, TokensUsed: 3}

	cases := []struct {
		name string
		resp Response
		ok   bool
	}{
		{"success", NewSuccess(AgentPolicy, map[string]any{"x": 1}, md), true},
		{"error", NewError(AgentPolicy, KindNotFound, "missing", md), true},
		{"timeout", NewTimeout(AgentPolicy, md), true},
		{"success without result", Response{SourceAgent: AgentPolicy, Status: StatusSuccess, Metadata: md}, false},
		{"success carrying error", Response{SourceAgent: AgentPolicy, Status: StatusSuccess,
			Result: map[string]any{}, Error: &ErrorInfo{Kind: KindTimeout}, Metadata: md}, false},
		{"error without info", Response{SourceAgent: AgentPolicy, Status: StatusError, Metadata: md}, false},
		{"error carrying result", Response{SourceAgent: AgentPolicy, Status: StatusError,
			Result: map[string]any{}, Error: &ErrorInfo{Kind: KindNotFound}, Metadata: md}, false},
		{"timeout carrying result", Response{SourceAgent: AgentPolicy, Status: StatusTimeout,
			Result: map[string]any{}, Metadata: md}, false},
		{"unknown status", Response{SourceAgent: AgentPolicy, Status: "maybe", Metadata: md}, false},
		{"unknown agent", NewTimeout("mystery", md), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.resp.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrContractViolation)
			}
		})
	}
}

func TestResponseOK(t *testing.T) {
	assert.True(t, NewSuccess(AgentPolicy, map[string]any{}, Metadata{}).OK())
	assert.False(t, NewError(AgentPolicy, KindNotFound, "x", Metadata{}).OK())
	assert.False(t, NewTimeout(AgentPolicy, Metadata{}).OK())
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	te := Transient(KindRateLimited, base)
	assert.True(t, IsTransient(te))
	assert.Equal(t, KindRateLimited, KindOf(te))
	assert.ErrorIs(t, te, base)

	pe := Permanent(KindWindowExpired, base)
	assert.False(t, IsTransient(pe))
	assert.Equal(t, KindWindowExpired, KindOf(pe))
	assert.ErrorIs(t, pe, base)

	// Unclassified errors never lose their kind entirely.
	assert.Equal(t, KindValidation, KindOf(base))
	assert.False(t, IsTransient(base))
}

func TestConfigurationError(t *testing.T) {
	err := Configurationf("bad budget: %d", 7)
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))
	assert.Contains(t, err.Error(), "bad budget: 7")
	assert.False(t, IsConfiguration(errors.New("plain")))
}
