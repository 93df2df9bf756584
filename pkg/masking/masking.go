// Package masking implements the sensitive-field masking engine from
// spec.md §4.2.
//
// Mask deep-traverses a LogEntry's Metadata and Labels looking for
// keys that match a baseline set, a tenant's additional set, or one of
// a fixed list of heuristic substrings, and rewrites the matching
// value according to a partial-rule strategy (keep-prefix,
// keep-suffix, mask-email, or a flat "****"). The engine never
// mutates its input: every call produces a deep copy.
package masking

import (
	"strconv"
	"strings"

	"ssw-logs-capture/pkg/types"
	"ssw-logs-capture/pkg/valuetree"
)

// heuristicSubstrings is the fixed list from spec.md §4.2 rule 4.
// It is always applied: no configuration option disables an entry, so
// "key" also matches benign names such as "request_key".
var heuristicSubstrings = []string{
	"card", "credit", "ssn", "social", "phone", "email", "pass", "pwd",
	"key", "token", "auth", "secret", "private", "confidential", "sensitive",
}

// Engine applies the baseline + tenant-override + heuristic rules to
// LogEntry metadata and labels.
type Engine struct {
	cfg types.MaskingConfig
}

// New builds an Engine from the loaded masking configuration.
func New(cfg types.MaskingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Mask returns a masked copy of entry. tenant selects the tenant's
// override key set from the engine's configuration; pass "" for the
// default tenant.
//
// Mask never fails the caller's batch: any panic during traversal of
// a single entry is recovered and replaced with the spec's
// masking_failed placeholder (spec.md §4.2).
func (e *Engine) Mask(entry types.LogEntry, tenant string) (result types.LogEntry) {
	result = entry
	defer func() {
		if r := recover(); r != nil {
			result = entry
			result.Metadata = map[string]any{
				"error":         "masking_failed",
				"original_keys": topLevelKeys(entry.Metadata),
			}
		}
	}()

	sensitive := e.sensitiveKeys(tenant)

	if entry.Labels != nil {
		result.Labels = make(map[string]string, len(entry.Labels))
		for k, v := range entry.Labels {
			if isSensitive(k, sensitive) {
				result.Labels[k] = e.maskValue(k, valuetree.String(v)).S
			} else {
				result.Labels[k] = v
			}
		}
	}

	if entry.Metadata != nil {
		tree := valuetree.FromAny(map[string]any(entry.Metadata))
		masked := e.maskTree(tree, sensitive)
		if m, ok := masked.ToAny().(map[string]any); ok {
			result.Metadata = m
		}
	}

	return result
}

func topLevelKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// sensitiveKeys unions the configured baseline set with the tenant's
// additional set, per spec.md §4.2 rules 1-2. Case folding is applied
// once here so matching stays a simple set lookup / substring scan.
func (e *Engine) sensitiveKeys(tenant string) []string {
	out := make([]string, 0, len(e.cfg.BaselineKeys))
	for _, k := range e.cfg.BaselineKeys {
		out = append(out, strings.ToLower(k))
	}
	if tenant != "" {
		for _, k := range e.cfg.TenantOverrides[tenant] {
			out = append(out, strings.ToLower(k))
		}
	}
	return out
}

// maskTree walks a map/list tree and masks values at sensitive keys.
// Only map keys are checked against the rule set (lists have no
// keys); list elements are recursed into unchanged unless they are
// themselves maps containing sensitive keys.
func (e *Engine) maskTree(v valuetree.Value, sensitive []string) valuetree.Value {
	switch v.Kind {
	case valuetree.KindMap:
		out := make(map[string]valuetree.Value, len(v.M))
		for k, val := range v.M {
			if isSensitive(k, sensitive) {
				out[k] = e.maskValue(k, val)
			} else {
				out[k] = e.maskTree(val, sensitive)
			}
		}
		return valuetree.Map(out)
	case valuetree.KindList:
		out := make([]valuetree.Value, len(v.L))
		for i, val := range v.L {
			out[i] = e.maskTree(val, sensitive)
		}
		return valuetree.List(out)
	default:
		return v
	}
}

// isSensitive implements spec.md §4.2 rules 1-4: exact match against
// the baseline+override set, substring match of any rule key, or a
// match against the fixed heuristic list.
func isSensitive(key string, ruleKeys []string) bool {
	lower := strings.ToLower(key)
	for _, rk := range ruleKeys {
		if lower == rk || strings.Contains(lower, rk) {
			return true
		}
	}
	for _, h := range heuristicSubstrings {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// maskValue rewrites a single value according to the partial-rule
// configured for key, falling back to the flat "****" strategy from
// spec.md §4.2.
func (e *Engine) maskValue(key string, v valuetree.Value) valuetree.Value {
	s := stringify(v)
	if s == "" {
		return valuetree.String("****")
	}

	rule, ok := e.cfg.PartialRules[strings.ToLower(key)]
	if !ok {
		return valuetree.String(flatMask(s))
	}

	switch {
	case rule.MaskEmail:
		return valuetree.String(maskEmail(s))
	case rule.KeepPrefix > 0:
		return valuetree.String(keepPrefix(s, rule.KeepPrefix))
	case rule.KeepSuffix > 0:
		return valuetree.String(keepSuffix(s, rule.KeepSuffix))
	default:
		return valuetree.String(flatMask(s))
	}
}

func stringify(v valuetree.Value) string {
	switch v.Kind {
	case valuetree.KindString:
		return v.S
	case valuetree.KindNull:
		return ""
	case valuetree.KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case valuetree.KindNumber:
		return strconv.FormatFloat(v.N, 'f', -1, 64)
	default:
		return ""
	}
}

func flatMask(s string) string {
	if len(s) <= 16 {
		return "****"
	}
	return "****[" + itoa(len(s)) + " chars]"
}

func keepPrefix(s string, n int) string {
	if len(s) < n {
		return "****"
	}
	return s[:n] + "****"
}

func keepSuffix(s string, n int) string {
	if len(s) < n {
		return "****"
	}
	return "****" + s[len(s)-n:]
}

// maskEmail implements spec.md §4.2's mask_email rule: split on the
// first '@'; local parts of length <=2 collapse entirely, longer ones
// keep their first and last character.
func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return flatMask(s)
	}
	local, domain := s[:at], s[at+1:]
	if len(local) <= 2 {
		return "****@" + domain
	}
	stars := len(local) - 2
	if stars > 5 {
		stars = 5
	}
	return string(local[0]) + strings.Repeat("*", stars) + string(local[len(local)-1]) + "@" + domain
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
