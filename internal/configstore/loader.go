// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package configstore

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"

	"grimm.is/edgesentry/internal/errors"
	"grimm.is/edgesentry/internal/logging"
	"grimm.is/edgesentry/internal/ruletypes"
)

// packedBlob is the wire schema of the "rules_packed" value (§6).
type packedBlob struct {
	Version  string                     `json:"v"`
	RuleList []string                   `json:"r"`
	Rules    map[string]json.RawMessage `json:"d"`
	Backends map[string]ruletypes.BackendConfig `json:"backends,omitempty"`
}

// Loader performs the packed/legacy rule-payload retrieval and parsing
// procedure (§4.2).
type Loader struct{}

// NewLoader returns a Loader. It carries no state; its methods are pure
// functions of the Store passed to Load.
func NewLoader() *Loader {
	return &Loader{}
}

// Load retrieves the rule payload from store following the procedure in
// §4.2: prefer the packed blob under KeyRulesPacked, falling back to the
// legacy KeyRuleList + per-id lookup format. Rules named in RuleList but
// missing from Rules are silently skipped with a warning, never failing
// the load. Any I/O, base64, gzip, or JSON error at the top level surfaces
// as a KindConfigNotFound/KindLoad error per §7; the engine is then not
// constructed and the caller must forward without rule evaluation.
func (l *Loader) Load(store Store) (ruleList []string, rules map[string]ruletypes.Rule, backends map[string]ruletypes.BackendConfig, err error) {
	if raw, ok := store.Get(KeyRulesPacked); ok {
		return l.loadPacked(raw)
	}
	return l.loadLegacy(store)
}

func (l *Loader) loadPacked(raw string) ([]string, map[string]ruletypes.Rule, map[string]ruletypes.BackendConfig, error) {
	jsonBytes, err := decodePacked(raw)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, errors.KindLoad, "decode packed rule blob")
	}

	var blob packedBlob
	if err := json.Unmarshal(jsonBytes, &blob); err != nil {
		return nil, nil, nil, errors.Wrap(err, errors.KindLoad, "parse packed rule blob JSON")
	}
	if !strings.HasPrefix(blob.Version, "1.") {
		logging.Warn("packed rule blob has unexpected version prefix", "version", blob.Version)
	}

	rules := make(map[string]ruletypes.Rule, len(blob.Rules))
	for id, data := range blob.Rules {
		rule, err := ruletypes.ParseRule(id, data)
		if err != nil {
			logging.Warn("skipping unparsable rule in packed blob", "rule_id", id, "error", err)
			continue
		}
		rules[id] = rule
	}

	for _, id := range blob.RuleList {
		if _, ok := rules[id]; !ok {
			logging.Warn("rule list references an id absent from the rule map", "rule_id", id)
		}
	}

	return blob.RuleList, rules, blob.Backends, nil
}

// loadLegacy reads the comma-separated rule_list key, then one store entry
// per rule id, each containing that rule's bare JSON document (§4.2 step 1
// fallback path). Legacy payloads carry no backend map.
func (l *Loader) loadLegacy(store Store) ([]string, map[string]ruletypes.Rule, map[string]ruletypes.BackendConfig, error) {
	listVal, ok := store.Get(KeyRuleList)
	if !ok {
		return nil, nil, nil, errors.New(errors.KindConfigNotFound, "neither rules_packed nor rule_list present in config store")
	}

	var ruleList []string
	for _, id := range strings.Split(listVal, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ruleList = append(ruleList, id)
		}
	}

	rules := make(map[string]ruletypes.Rule, len(ruleList))
	for _, id := range ruleList {
		data, ok := store.Get(id)
		if !ok {
			logging.Warn("skipping legacy rule id missing from store", "rule_id", id)
			continue
		}
		rule, err := ruletypes.ParseRule(id, []byte(data))
		if err != nil {
			logging.Warn("skipping unparsable legacy rule", "rule_id", id, "error", err)
			continue
		}
		rules[id] = rule
	}

	return ruleList, rules, nil, nil
}

// decodePacked implements the blob's two encodings (§6): a "raw:" prefix
// means base64(utf8(json)) with no compression; otherwise the value is
// base64(gzip(utf8(json))).
func decodePacked(raw string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(raw, "raw:"); ok {
		return base64.StdEncoding.DecodeString(rest)
	}

	compressed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
