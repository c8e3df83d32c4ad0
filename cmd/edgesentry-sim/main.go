// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command edgesentry-sim replays a JSON-lines fixture of captured requests
// through the flat rule engine, printing one verdict per line. It is the
// offline counterpart to the admin /evaluate endpoint: no host edge
// runtime, no real config store.
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"grimm.is/edgesentry/internal/configstore"
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
)

func main() {
	rulesPath := flag.String("rules", "", "path to a packed-blob JSON file (the raw JSON document, not base64/gzip encoded)")
	fixturePath := flag.String("fixture", "", "path to a JSON-lines file of request fixtures")
	flag.Parse()

	if *rulesPath == "" || *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: edgesentry-sim -rules rules.json -fixture requests.jsonl")
		os.Exit(2)
	}

	rulesJSON, err := os.ReadFile(*rulesPath)
	if err != nil {
		log.Fatalf("reading rules file: %v", err)
	}

	store := configstore.MapStore{
		configstore.KeyRulesPacked: "raw:" + base64.StdEncoding.EncodeToString(rulesJSON),
	}

	registry := ratelimit.NewRegistry()
	e, backends, err := configstore.BuildEngine(store, registry, "default-origin")
	if err != nil {
		log.Fatalf("building engine: %v", err)
	}
	log.Printf("loaded %d rule(s), %d backend(s)", e.RuleCount(), len(backends))

	fixtures, err := loadFixtures(*fixturePath)
	if err != nil {
		log.Fatalf("loading fixtures: %v", err)
	}

	detector := reqctx.NewRegexDeviceDetector()
	for _, fixture := range fixtures {
		facade := reqctx.NewRequest(reqctx.Request{
			MethodVal:    fixture.Method,
			PathVal:      fixture.Path,
			ClientIPVal:  fixture.ClientIP,
			HeaderOrder:  headerNames(fixture.Headers),
			Headers:      fixture.Headers,
			UserAgentVal: fixture.UserAgent,
		}, detector, nil)

		result := e.EvaluateWithDetails(facade)
		fmt.Printf("%s %s -> %s (rule=%q)\n", fixture.Method, fixture.Path, result.Verdict.Kind, result.MatchedRule)
	}
}

type fixtureRequest struct {
	Method    string            `json:"method" yaml:"method"`
	Path      string            `json:"path" yaml:"path"`
	ClientIP  string            `json:"client_ip" yaml:"client_ip"`
	Headers   map[string]string `json:"headers" yaml:"headers"`
	UserAgent string            `json:"user_agent" yaml:"user_agent"`
}

// loadFixtures reads fixturePath as JSON-lines (one object per line), or,
// for a .yaml/.yml extension, as a single YAML document containing a list
// of fixtures — a more readable authoring format for hand-written request
// sets than JSON-lines.
func loadFixtures(fixturePath string) ([]fixtureRequest, error) {
	f, err := os.Open(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("opening fixture file: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(fixturePath))
	if ext == ".yaml" || ext == ".yml" {
		var fixtures []fixtureRequest
		if err := yaml.NewDecoder(f).Decode(&fixtures); err != nil {
			return nil, fmt.Errorf("parsing YAML fixtures: %w", err)
		}
		return fixtures, nil
	}

	var fixtures []fixtureRequest
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fixture fixtureRequest
		if err := json.Unmarshal(line, &fixture); err != nil {
			log.Printf("skipping malformed fixture line: %v", err)
			continue
		}
		fixtures = append(fixtures, fixture)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}
	return fixtures, nil
}

func headerNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	return names
}

