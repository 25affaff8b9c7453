package builtin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dlclark/regexp2/v2"
	"github.com/hokaccha/go-prettyjson"

	"github.com/luthien-control/core/internal/log"
	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/repository"
	"github.com/luthien-control/core/internal/transaction"
	"github.com/luthien-control/core/internal/xmap"
)

// sensitiveKeyNames matches spec §7's redaction key set (case-insensitive
// substring match, mirroring the teacher's MaskSensitiveHeaders header list
// generalized to arbitrary field names).
var sensitiveKeyNames = []string{
	"api_key", "apikey", "authorization", "password", "secret", "token", "bearer",
}

// sensitiveValuePatterns catches a credential even when its containing key
// isn't named suspiciously (e.g. a leaked key embedded in free-form content).
var sensitiveValuePatterns = []*regexp2.Regexp{
	mustCompile(`sk-[a-zA-Z0-9]{20,}`),
	mustCompile(`xoxb-[0-9]{10,13}-[0-9]{10,13}-[a-zA-Z0-9]{24}`),
	mustCompile(`ghp_[a-zA-Z0-9]{36}`),
	mustCompile(`Bearer [a-zA-Z0-9._\-]+`),
}

func mustCompile(pattern string) *regexp2.Regexp {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		panic(err)
	}

	return re
}

// redactSecret implements spec §9's resolved display rule: show min(4,
// len(secret)) literal characters followed by "***"; an empty string stays
// empty.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}

	n := min(len(secret), 4)

	return secret[:n] + "***"
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeyNames {
		if strings.Contains(lower, s) {
			return true
		}
	}

	return false
}

func matchesSensitivePattern(s string) bool {
	for _, re := range sensitiveValuePatterns {
		if matched, err := re.MatchString(s); err == nil && matched {
			return true
		}
	}

	return false
}

// redactTree recurses into maps and slices, replacing any value whose key
// matches sensitiveKeyNames, or whose own string content matches a known
// credential pattern, with its redacted form (spec §7: "redaction is
// structural — it recurses into maps/lists").
func redactTree(key string, v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, sub := range vv {
			out[k] = redactTree(k, sub)
		}

		return out
	case []any:
		out := make([]any, len(vv))
		for i, sub := range vv {
			out[i] = redactTree(key, sub)
		}

		return out
	case string:
		if isSensitiveKey(key) {
			return redactSecret(vv)
		}

		if matchesSensitivePattern(vv) {
			return redactSecret(vv)
		}

		return vv
	default:
		return v
	}
}

// TransactionContextLogging is read-only (P9): it serializes the full
// transaction snapshot, applies deep redaction, and logs it, returning the
// transaction unchanged. With persist enabled it also appends the redacted
// snapshot to the luthien_log audit table when the container's repository
// supports log writes.
type TransactionContextLogging struct {
	name    string
	level   string
	persist bool
}

func NewTransactionContextLogging(name, level string) *TransactionContextLogging {
	if name == "" {
		name = "TransactionContextLogging"
	}

	if level == "" {
		level = "info"
	}

	return &TransactionContextLogging{name: name, level: level}
}

// WithPersistence turns on audit-table writes for this instance.
func (p *TransactionContextLogging) WithPersistence() *TransactionContextLogging {
	p.persist = true
	return p
}

func (p *TransactionContextLogging) Name() string { return p.name }

func (p *TransactionContextLogging) Apply(ctx context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	raw, err := json.Marshal(tx.Snapshot())
	if err != nil {
		return tx, nil
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return tx, nil
	}

	redacted := redactTree("", tree)

	pretty, err := prettyjson.Marshal(redacted)
	if err != nil {
		pretty, _ = json.Marshal(redacted)
	}

	fields := []log.Field{log.String("transaction_id", tx.ID()), log.String("dump", string(pretty))}

	switch p.level {
	case "debug":
		log.Debug(ctx, p.name, fields...)
	case "warn":
		log.Warn(ctx, p.name, fields...)
	case "error":
		log.Error(ctx, p.name, fields...)
	default:
		log.Info(ctx, p.name, fields...)
	}

	p.persistSnapshot(ctx, tx, redacted, deps)

	return tx, nil
}

// persistSnapshot appends the redacted dump to luthien_log. Failures are
// logged, never raised: an audit write must not fail the transaction.
func (p *TransactionContextLogging) persistSnapshot(ctx context.Context, tx *transaction.Transaction, redacted any, deps *policy.Container) {
	if !p.persist || deps == nil || deps.Repository == nil {
		return
	}

	logRepo, ok := deps.Repository.(repository.LogRepository)
	if !ok {
		return
	}

	data, ok := redacted.(map[string]any)
	if !ok {
		data = map[string]any{"snapshot": redacted}
	}

	entry := &repository.LogEntry{
		TransactionID: tx.ID(),
		Data:          data,
		Datatype:      "transaction_snapshot",
		Notes:         map[string]any{"policy": p.name},
	}

	if err := logRepo.SaveLog(ctx, entry); err != nil {
		log.Warn(ctx, "audit log write failed", log.String("policy", p.name), log.Cause(err))
	}
}

func (p *TransactionContextLogging) Serialize() map[string]any {
	return map[string]any{"type": "TransactionContextLogging", "name": p.name, "level": p.level, "persist": p.persist}
}

func init() {
	policy.Register("TransactionContextLogging", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		level, _ := doc["level"].(string)

		p := NewTransactionContextLogging(name, level)

		if persist := xmap.GetBoolPtr(doc, "persist"); persist != nil && *persist {
			p = p.WithPersistence()
		}

		return p, nil
	})
}
