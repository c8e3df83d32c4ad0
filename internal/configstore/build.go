// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package configstore

import (
	"encoding/json"

	"grimm.is/edgesentry/internal/engine"
	"grimm.is/edgesentry/internal/logging"
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/ruletypes"
)

// BuildEngine loads the rule payload from store and assembles a flat
// engine.Engine from it, in rule-list order, skipping ids absent from the
// rule map (already warned by Load). registry is shared with any graph
// interpreter in the process per invariant 6.
func BuildEngine(store Store, registry *ratelimit.Registry, defaultBackend string) (*engine.Engine, map[string]ruletypes.BackendConfig, error) {
	loader := NewLoader()
	ruleList, rules, backends, err := loader.Load(store)
	if err != nil {
		return nil, nil, err
	}

	e := engine.New(registry, defaultBackend)
	for _, id := range ruleList {
		rule, ok := rules[id]
		if !ok {
			continue
		}
		data, marshalErr := json.Marshal(rule)
		if marshalErr != nil {
			logging.Warn("re-marshaling loaded rule failed, skipping", "rule_id", id, "error", marshalErr)
			continue
		}
		if err := e.AddRule(id, data); err != nil {
			logging.Warn("rejected rule while building engine", "rule_id", id, "error", err)
		}
	}

	return e, backends, nil
}
