package policy

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Constructor builds a policy instance from its decoded document. deps
// carries the declared-dependency set (settings, http client, repository)
// every built-in policy may consult by name (spec §4.6 resolution rule 2);
// load resolves nested policy documents before a constructor needs them
// (resolution rule 3), and doc's own keys are already the policy's explicit
// config (resolution rule 1) — each built-in constructor mapstructure-decodes
// doc into its own typed config shape.
type Constructor func(ctx context.Context, doc map[string]any, deps *Container, load Loader) (ControlPolicy, error)

// Loader resolves a nested policy document (a "policies": [...] entry, or a
// "then"/"else" sub-document) back through the same registry, satisfying
// spec §4.6 resolution rule 3. Passed to every constructor so built-ins
// compose without importing the registry package that owns Load itself.
type Loader func(ctx context.Context, doc map[string]any) (ControlPolicy, error)

var registry = map[string]Constructor{}

// Register adds a type tag to the process-global registry. Called from
// each built-in policy's init(). Re-registering the same tag is a
// programmer error (panics) — it would silently shadow a constructor.
func Register(tag string, ctor Constructor) {
	if _, exists := registry[tag]; exists {
		panic(fmt.Sprintf("policy: tag %q already registered", tag))
	}

	registry[tag] = ctor
}

// Load looks up doc["type"], validates doc["config"] is a mapping (or
// absent, meaning empty config), and delegates to the registered
// constructor. Nested policy fields are resolved by passing Load itself
// back to the constructor as its Loader argument — see spec §4.6.
func Load(ctx context.Context, doc map[string]any, deps *Container) (ControlPolicy, error) {
	tag, _ := doc["type"].(string)
	if tag == "" {
		return nil, NewPolicyLoadError("", "policy document missing \"type\"")
	}

	ctor, ok := registry[tag]
	if !ok {
		return nil, NewPolicyLoadError(tag, fmt.Sprintf("unknown policy type %q", tag))
	}

	loader := func(ctx context.Context, sub map[string]any) (ControlPolicy, error) {
		return Load(ctx, sub, deps)
	}

	config, hasWrapper := doc["config"].(map[string]any)
	if !hasWrapper {
		if _, present := doc["config"]; present {
			return nil, NewPolicyLoadError(tag, "policy \"config\" must be a mapping")
		}

		config = doc
	} else if name, ok := doc["name"].(string); ok && name != "" {
		// The DB row and the file format promote name out of config; fold it
		// back in so constructors see one flat document. Copy first — the
		// config map may be shared (singleflight hands the same doc to every
		// concurrent caller).
		merged := make(map[string]any, len(config)+1)
		for k, v := range config {
			merged[k] = v
		}

		if _, present := merged["name"]; !present {
			merged["name"] = name
		}

		config = merged
	}

	p, err := ctor(ctx, config, deps, loader)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// DecodeConfig mapstructure-decodes doc into T, the typed config shape a
// built-in constructor declares for itself (spec §4.6 resolution rule 1).
// Constructors with more than a field or two of config use this instead of
// hand-rolled map type assertions.
func DecodeConfig[T any](doc map[string]any) (T, error) {
	var out T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return out, err
	}

	if err := decoder.Decode(doc); err != nil {
		return out, err
	}

	return out, nil
}

// Serialize round-trips a policy tree to its document form, wrapping the
// instance's own Serialize() with the {type, name, config} envelope the
// loader expects back (spec §4.6, §6 policy document format).
func Serialize(p ControlPolicy) map[string]any {
	body := p.Serialize()

	tag, _ := body["type"].(string)
	name := p.Name()

	config := make(map[string]any, len(body))
	for k, v := range body {
		if k == "type" || k == "name" {
			continue
		}

		config[k] = v
	}

	return map[string]any{"type": tag, "name": name, "config": config}
}
