package masking

import (
	"testing"

	"ssw-logs-capture/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() types.MaskingConfig {
	return types.MaskingConfig{
		BaselineKeys: []string{"password", "ssn"},
		PartialRules: map[string]PartialRuleFor{},
	}
}

// PartialRuleFor is a tiny alias so tests can build rule maps without
// importing types.PartialRule at every call site.
type PartialRuleFor = types.PartialRule

func TestMask_BaselineKeyMasked(t *testing.T) {
	e := New(defaultConfig())
	entry := types.LogEntry{
		Message:  "hello",
		Metadata: map[string]any{"password": "secret"},
	}

	out := e.Mask(entry, "")

	require.Equal(t, "****", out.Metadata["password"])
	assert.Equal(t, "hello", out.Message)
}

func TestMask_DoesNotMutateInput(t *testing.T) {
	e := New(defaultConfig())
	entry := types.LogEntry{
		Metadata: map[string]any{"password": "secret", "note": "fine"},
	}

	_ = e.Mask(entry, "")

	assert.Equal(t, "secret", entry.Metadata["password"], "Mask must not mutate its input")
}

func TestMask_HeuristicSubstringMatch(t *testing.T) {
	e := New(defaultConfig())
	entry := types.LogEntry{
		Metadata: map[string]any{"api_token_value": "abcd1234"},
	}

	out := e.Mask(entry, "")

	assert.Equal(t, "****", out.Metadata["api_token_value"])
}

func TestMask_TenantOverride(t *testing.T) {
	cfg := defaultConfig()
	cfg.TenantOverrides = map[string][]string{"acme": {"internal_id"}}
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"internal_id": "12345"}}

	assert.Equal(t, "****", e.Mask(entry, "acme").Metadata["internal_id"])
	assert.Equal(t, "12345", e.Mask(entry, "other").Metadata["internal_id"])
}

func TestMask_KeepPrefix(t *testing.T) {
	cfg := defaultConfig()
	cfg.PartialRules["bearer_token"] = types.PartialRule{KeepPrefix: 4}
	cfg.BaselineKeys = append(cfg.BaselineKeys, "bearer_token")
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"bearer_token": "sk-abcdef"}}

	assert.Equal(t, "sk-a****", e.Mask(entry, "").Metadata["bearer_token"])
}

func TestMask_KeepPrefixLongerThanValue(t *testing.T) {
	cfg := defaultConfig()
	cfg.PartialRules["password"] = types.PartialRule{KeepPrefix: 20}
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"password": "ab"}}

	assert.Equal(t, "****", e.Mask(entry, "").Metadata["password"])
}

func TestMask_NumberKeepsFractionalDigits(t *testing.T) {
	cfg := defaultConfig()
	cfg.PartialRules["password"] = types.PartialRule{KeepPrefix: 6}
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"password": 123.45}}

	assert.Equal(t, "123.45****", e.Mask(entry, "").Metadata["password"])
}

func TestMask_Email(t *testing.T) {
	cfg := defaultConfig()
	cfg.PartialRules["email"] = types.PartialRule{MaskEmail: true}
	cfg.BaselineKeys = append(cfg.BaselineKeys, "email")
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"email": "john.doe@example.com"}}

	assert.Equal(t, "j*****e@example.com", e.Mask(entry, "").Metadata["email"])
}

func TestMask_EmailShortLocalPart(t *testing.T) {
	cfg := defaultConfig()
	cfg.PartialRules["email"] = types.PartialRule{MaskEmail: true}
	cfg.BaselineKeys = append(cfg.BaselineKeys, "email")
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"email": "jo@example.com"}}

	assert.Equal(t, "****@example.com", e.Mask(entry, "").Metadata["email"])
}

func TestMask_NestedMapAndList(t *testing.T) {
	e := New(defaultConfig())
	entry := types.LogEntry{
		Metadata: map[string]any{
			"user": map[string]any{
				"password": "nested-secret",
				"history":  []any{map[string]any{"ssn": "123-45-6789"}},
			},
		},
	}

	out := e.Mask(entry, "")

	user := out.Metadata["user"].(map[string]any)
	assert.Equal(t, "****", user["password"])
	history := user["history"].([]any)
	assert.Equal(t, "****", history[0].(map[string]any)["ssn"])
}

func TestMask_LongFlatValue(t *testing.T) {
	e := New(defaultConfig())
	entry := types.LogEntry{
		Metadata: map[string]any{"password": "01234567890123456789"},
	}

	out := e.Mask(entry, "")

	assert.Equal(t, "****[20 chars]", out.Metadata["password"])
}

func TestMask_NoLeakageBeyondBound(t *testing.T) {
	cfg := defaultConfig()
	cfg.PartialRules["password"] = types.PartialRule{KeepPrefix: 2}
	e := New(cfg)

	entry := types.LogEntry{Metadata: map[string]any{"password": "supersecretvalue"}}
	out := e.Mask(entry, "")

	masked := out.Metadata["password"].(string)
	assert.LessOrEqual(t, len(masked)-len("****"), 3)
}

func TestMask_EmptyValue(t *testing.T) {
	e := New(defaultConfig())
	entry := types.LogEntry{Metadata: map[string]any{"password": ""}}

	assert.Equal(t, "****", e.Mask(entry, "").Metadata["password"])
}
