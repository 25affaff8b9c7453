package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/luthien-control/core/internal/repository"
)

// LoadFromFile parses a JSON document of the shape {"type": str, "config":
// mapping, ...} from path and loads it through the registry (spec §4.6).
func LoadFromFile(ctx context.Context, path string, deps *Container) (ControlPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewPolicyLoadError("", fmt.Sprintf("read policy file %s: %v", path, err))
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewPolicyLoadError("", fmt.Sprintf("parse policy file %s: %v", path, err))
	}

	if _, ok := doc["type"].(string); !ok {
		return nil, NewPolicyLoadError("", fmt.Sprintf("%s: top-level document missing \"type\"", path))
	}

	return Load(ctx, doc, deps)
}

var dbLoadGroup singleflight.Group

// LoadFromDB queries the policy repository for an active record with the
// given name and loads it. Concurrent identical lookups (the common case —
// many requests loading the same root policy name at once) collapse into a
// single repository call via singleflight.
func LoadFromDB(ctx context.Context, repo repository.PolicyRepository, name string, deps *Container) (ControlPolicy, error) {
	v, err, _ := dbLoadGroup.Do(name, func() (any, error) {
		cfg, err := repo.FindPolicy(ctx, name)
		if err != nil {
			return nil, NewPolicyLoadError(name, fmt.Sprintf("query policy %q: %v", name, err))
		}

		if cfg == nil {
			return nil, NewPolicyLoadError(name, fmt.Sprintf("no active policy named %q", name))
		}

		doc := map[string]any{"type": cfg.Type, "name": cfg.Name, "config": cfg.Config}

		return doc, nil
	})
	if err != nil {
		return nil, err
	}

	return Load(ctx, v.(map[string]any), deps)
}
