// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command rules-compile is the offline authoring half of the rule
// pipeline: it parses an HCL rule file (via hashicorp/hcl/v2) and emits
// the packed blob format the config loader consumes (spec §6), gzip
// compressed and base64 encoded so it fits the config store's 8 KB
// per-value limit.
package main

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"grimm.is/edgesentry/internal/ruletypes"
)

// packedBlobDoc mirrors configstore's packed blob wire schema (§6); kept
// as a private duplicate here rather than exported from configstore,
// since the compiler is the only other producer of this shape and the two
// packages should not need to share an internal type to agree on JSON
// field names.
type packedBlobDoc struct {
	Version  string                         `json:"v"`
	RuleList []string                       `json:"r"`
	Rules    map[string]ruletypes.Rule      `json:"d"`
	Backends map[string]ruletypes.BackendConfig `json:"backends,omitempty"`
}

func main() {
	inPath := flag.String("in", "", "path to the HCL rule-authoring file")
	outPath := flag.String("out", "", "path to write the packed blob to (stdout if omitted)")
	raw := flag.Bool("raw", false, "emit the raw: (uncompressed) encoding instead of gzip")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: rules-compile -in rules.hcl [-out blob.txt] [-raw]")
		os.Exit(2)
	}

	rules, backends, err := decodeHCL(*inPath)
	if err != nil {
		log.Fatalf("decoding HCL: %v", err)
	}

	doc := packedBlobDoc{
		Version:  "1.0",
		RuleList: make([]string, 0, len(rules)),
		Rules:    make(map[string]ruletypes.Rule, len(rules)),
		Backends: backends,
	}
	for _, r := range rules {
		doc.RuleList = append(doc.RuleList, r.Name)
		doc.Rules[r.Name] = r
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		log.Fatalf("marshaling packed blob JSON: %v", err)
	}

	var encoded string
	if *raw {
		encoded = "raw:" + base64.StdEncoding.EncodeToString(jsonBytes)
	} else {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(jsonBytes); err != nil {
			log.Fatalf("gzip compressing packed blob: %v", err)
		}
		if err := gw.Close(); err != nil {
			log.Fatalf("closing gzip writer: %v", err)
		}
		encoded = base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	if *outPath == "" {
		fmt.Println(encoded)
		return
	}
	if err := os.WriteFile(*outPath, []byte(encoded), 0o644); err != nil {
		log.Fatalf("writing output file: %v", err)
	}
	log.Printf("wrote %d rule(s), %d backend(s) to %s (%d bytes encoded)", len(doc.RuleList), len(doc.Backends), *outPath, len(encoded))
}
