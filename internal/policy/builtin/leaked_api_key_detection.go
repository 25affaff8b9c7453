package builtin

import (
	"context"
	"fmt"

	"github.com/dlclark/regexp2/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
	"github.com/luthien-control/core/internal/xmap"
)

// DefaultLeakedKeyPatterns covers the credential shapes spec §4.7 names:
// OpenAI secret keys, Slack bot tokens, and GitHub personal access tokens.
var DefaultLeakedKeyPatterns = []string{
	`sk-[a-zA-Z0-9]{48}`,
	`xoxb-[0-9]{10,13}-[0-9]{10,13}-[a-zA-Z0-9]{24}`,
	`ghp_[a-zA-Z0-9]{36}`,
}

// patternCache is shared across every LeakedApiKeyDetection instance in the
// process — unlike regex_match conditions (C3), which compile and own a
// single pattern per instance, this policy routinely scans a much larger,
// frequently-reused pattern set against every message in every request, so
// compiled patterns are worth sharing via a bounded LRU.
var patternCache, _ = lru.New[string, *regexp2.Regexp](256)

func compilePattern(pattern string) (*regexp2.Regexp, error) {
	if re, ok := patternCache.Get(pattern); ok {
		return re, nil
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}

	patternCache.Add(pattern, re)

	return re, nil
}

// LeakedApiKeyDetection scans every request message's content against a
// configurable pattern list and raises LeakedApiKeyError on any match
// (P10).
type LeakedApiKeyDetection struct {
	name     string
	patterns []string
	compiled []*regexp2.Regexp
}

func NewLeakedApiKeyDetection(name string, patterns []string) (*LeakedApiKeyDetection, error) {
	if name == "" {
		name = "LeakedApiKeyDetection"
	}

	if len(patterns) == 0 {
		patterns = DefaultLeakedKeyPatterns
	}

	compiled := make([]*regexp2.Regexp, len(patterns))

	for i, pattern := range patterns {
		re, err := compilePattern(pattern)
		if err != nil {
			return nil, policy.NewPolicyLoadError(name, fmt.Sprintf("invalid pattern %q: %v", pattern, err))
		}

		compiled[i] = re
	}

	return &LeakedApiKeyDetection{name: name, patterns: patterns, compiled: compiled}, nil
}

func (p *LeakedApiKeyDetection) Name() string { return p.name }

func (p *LeakedApiKeyDetection) Apply(_ context.Context, tx *transaction.Transaction, _ *policy.Container) (*transaction.Transaction, error) {
	req := tx.OpenAIRequest()
	if req == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	if req.Payload == nil {
		return tx, nil
	}

	for _, msg := range req.Payload.Messages {
		content := msg.Content.FlatText()
		if content == "" {
			continue
		}

		for i, re := range p.compiled {
			matched, err := re.MatchString(content)
			if err == nil && matched {
				return nil, policy.NewLeakedApiKeyError(p.name, fmt.Sprintf("detected leaked credential matching pattern %q", p.patterns[i]))
			}
		}
	}

	return tx, nil
}

func (p *LeakedApiKeyDetection) Serialize() map[string]any {
	return map[string]any{"type": "LeakedApiKeyDetection", "name": p.name, "patterns": p.patterns}
}

func init() {
	policy.Register("LeakedApiKeyDetection", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)

		patterns := xmap.GetStringSlice(doc, "patterns")
		if patterns == nil {
			if raw, ok := doc["patterns"].([]any); ok {
				for _, v := range raw {
					if s, ok := v.(string); ok {
						patterns = append(patterns, s)
					}
				}
			}
		}

		return NewLeakedApiKeyDetection(name, patterns)
	})
}
