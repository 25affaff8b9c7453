package condition

import (
	"errors"

	"github.com/dlclark/regexp2/v2"

	"github.com/luthien-control/core/internal/resolver"
	"github.com/luthien-control/core/internal/transaction"
)

var errNotAStringPattern = errors.New("condition: regex_match right resolver must yield a string pattern")

// comparison is the shared shape of every comparator condition: evaluate
// left and right resolvers against the transaction, then apply a binary
// predicate to the pair. The spec generalizes the source's key+static-value
// ComparisonCondition into two independently-resolved operands so either
// side can be a transaction_path or a static literal.
type comparison struct {
	tag   string
	left  resolver.Resolver
	right resolver.Resolver
	pred  func(left, right any) bool
}

func (c *comparison) Type() string { return c.tag }

func (c *comparison) Evaluate(tx *transaction.Transaction) bool {
	return c.pred(c.left.Resolve(tx), c.right.Resolve(tx))
}

func (c *comparison) Serialize() map[string]any {
	return map[string]any{
		"type":  c.tag,
		"left":  c.left.Serialize(),
		"right": c.right.Serialize(),
	}
}

func newComparison(tag string, left, right resolver.Resolver, pred func(l, r any) bool) *comparison {
	return &comparison{tag: tag, left: left, right: right, pred: pred}
}

func loadComparison(tag string, pred func(l, r any) bool) constructor {
	return func(doc map[string]any) (Condition, error) {
		left, err := resolverFrom(doc, "left")
		if err != nil {
			return nil, err
		}

		right, err := resolverFrom(doc, "right")
		if err != nil {
			return nil, err
		}

		return newComparison(tag, left, right, pred), nil
	}
}

func NewEquals(left, right resolver.Resolver) Condition {
	return newComparison("equals", left, right, valueEqual)
}

func NewNotEquals(left, right resolver.Resolver) Condition {
	return newComparison("not_equals", left, right, func(l, r any) bool { return !valueEqual(l, r) })
}

func NewLessThan(left, right resolver.Resolver) Condition {
	return newComparison("less_than", left, right, func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp < 0
	})
}

func NewLessThanOrEqual(left, right resolver.Resolver) Condition {
	return newComparison("less_than_or_equal", left, right, func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp <= 0
	})
}

func NewGreaterThan(left, right resolver.Resolver) Condition {
	return newComparison("greater_than", left, right, func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp > 0
	})
}

func NewGreaterThanOrEqual(left, right resolver.Resolver) Condition {
	return newComparison("greater_than_or_equal", left, right, func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp >= 0
	})
}

func NewContains(left, right resolver.Resolver) Condition {
	return newComparison("contains", left, right, valueContains)
}

// regexComparison compiles its pattern once at construction time, per
// condition instance; this is deliberately separate from the bounded,
// shared golang-lru cache LeakedApiKeyDetection uses for its much larger,
// frequently-reused pattern set (C7).
type regexComparison struct {
	left    resolver.Resolver
	pattern resolver.Resolver
	re      *regexp2.Regexp
}

func (c *regexComparison) Type() string { return "regex_match" }

func (c *regexComparison) Evaluate(tx *transaction.Transaction) bool {
	s, ok := c.left.Resolve(tx).(string)
	if !ok {
		return false
	}

	matched, err := c.re.MatchString(s)
	return err == nil && matched
}

func (c *regexComparison) Serialize() map[string]any {
	return map[string]any{
		"type":  "regex_match",
		"left":  c.left.Serialize(),
		"right": c.pattern.Serialize(),
	}
}

func NewRegexMatch(left resolver.Resolver, pattern string) (Condition, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}

	return &regexComparison{left: left, pattern: resolver.NewStatic(pattern), re: re}, nil
}

func loadRegexMatch(doc map[string]any) (Condition, error) {
	left, err := resolverFrom(doc, "left")
	if err != nil {
		return nil, err
	}

	right, err := resolverFrom(doc, "right")
	if err != nil {
		return nil, err
	}

	pattern, ok := right.Resolve(nil).(string)
	if !ok {
		return nil, errNotAStringPattern
	}

	return NewRegexMatch(left, pattern)
}

func init() {
	register("equals", loadComparison("equals", valueEqual))
	register("not_equals", loadComparison("not_equals", func(l, r any) bool { return !valueEqual(l, r) }))
	register("less_than", loadComparison("less_than", func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp < 0
	}))
	register("less_than_or_equal", loadComparison("less_than_or_equal", func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp <= 0
	}))
	register("greater_than", loadComparison("greater_than", func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp > 0
	}))
	register("greater_than_or_equal", loadComparison("greater_than_or_equal", func(l, r any) bool {
		cmp, ok := compareOrdered(l, r)
		return ok && cmp >= 0
	}))
	register("contains", loadComparison("contains", valueContains))
	register("regex_match", loadRegexMatch)
}
