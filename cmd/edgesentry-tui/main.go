// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command edgesentry-tui is a terminal viewer for evaluation traces: it
// replays a JSON-lines fixture through the flat engine and renders each
// request's verdict and matched rule as a scrollable list, grounded on the teacher's
// bubbletea/bubbles list-model idiom.
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/edgesentry/internal/configstore"
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	styleBlock = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleAllow = lipgloss.NewStyle().Foreground(lipgloss.Color("120"))
)

type traceItem struct {
	method, path, verdict, rule string
}

func (i traceItem) Title() string {
	style := styleAllow
	if i.verdict == "block" || i.verdict == "challenge" || i.verdict == "tarpit" {
		style = styleBlock
	}
	return style.Render(fmt.Sprintf("%s %s -> %s", i.method, i.path, i.verdict))
}

func (i traceItem) Description() string {
	if i.rule == "" {
		return "no rule matched"
	}
	return "matched rule: " + i.rule
}

func (i traceItem) FilterValue() string { return i.path }

type model struct {
	list list.Model
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	return m.list.View()
}

func main() {
	rulesPath := flag.String("rules", "", "path to a raw packed-blob rules JSON file")
	fixturePath := flag.String("fixture", "", "path to a JSON-lines file of request fixtures")
	flag.Parse()

	if *rulesPath == "" || *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: edgesentry-tui -rules rules.json -fixture requests.jsonl")
		os.Exit(2)
	}

	items, err := buildTrace(*rulesPath, *fixturePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "edgesentry evaluation trace"
	l.Styles.Title = styleTitle

	if _, err := tea.NewProgram(model{list: l}, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(1)
	}
}

func buildTrace(rulesPath, fixturePath string) ([]list.Item, error) {
	rulesJSON, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	store := configstore.MapStore{
		configstore.KeyRulesPacked: "raw:" + base64.StdEncoding.EncodeToString(rulesJSON),
	}
	e, _, err := configstore.BuildEngine(store, ratelimit.NewRegistry(), "default-origin")
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	f, err := os.Open(fixturePath)
	if err != nil {
		return nil, fmt.Errorf("opening fixture file: %w", err)
	}
	defer f.Close()

	detector := reqctx.NewRegexDeviceDetector()
	var items []list.Item
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fixture struct {
			Method    string            `json:"method"`
			Path      string            `json:"path"`
			ClientIP  string            `json:"client_ip"`
			Headers   map[string]string `json:"headers"`
			UserAgent string            `json:"user_agent"`
		}
		if err := json.Unmarshal(line, &fixture); err != nil {
			continue
		}

		headerOrder := make([]string, 0, len(fixture.Headers))
		for name := range fixture.Headers {
			headerOrder = append(headerOrder, name)
		}
		facade := reqctx.NewRequest(reqctx.Request{
			MethodVal:    fixture.Method,
			PathVal:      fixture.Path,
			ClientIPVal:  fixture.ClientIP,
			HeaderOrder:  headerOrder,
			Headers:      fixture.Headers,
			UserAgentVal: fixture.UserAgent,
		}, detector, nil)

		result := e.EvaluateWithDetails(facade)
		items = append(items, traceItem{
			method:  fixture.Method,
			path:    fixture.Path,
			verdict: string(result.Verdict.Kind),
			rule:    result.MatchedRule,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}
	return items, nil
}
