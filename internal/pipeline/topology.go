// Package pipeline holds the adjudication pipeline topology and infers
// per-stage execution state from the free-text trace lines the backend
// streams while a claim is processed. The backend exposes no structured
// status feed, so keyword matching over the trace is the only signal.
package pipeline

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v2"
)

//go:embed topology.yaml
var topologyYAML []byte

// Group execution modes.
const (
	GroupParallel  = "parallel"
	GroupExclusive = "exclusive"
)

// Stage is one node of the pipeline graph. Keywords are case-insensitive
// substring patterns matched against the trace buffer; sentinel stages
// (terminal: true) have none and derive their status from the request
// lifecycle instead.
type Stage struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Rank     int      `yaml:"rank"`
	Keywords []string `yaml:"keywords"`
	Group    string   `yaml:"group"`
	Terminal bool     `yaml:"terminal"`
}

type topologyFile struct {
	Version int               `yaml:"version"`
	Stages  []Stage           `yaml:"stages"`
	Groups  map[string]string `yaml:"groups"`
}

// Topology is the shared, versioned stage table. It is immutable after Load.
type Topology struct {
	version int
	stages  []Stage
	byID    map[string]int
	groups  map[string]string
	entry   string
	exit    string
}

// Load parses and validates a topology document.
func Load(data []byte) (*Topology, error) {
	var doc topologyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if len(doc.Stages) == 0 {
		return nil, fmt.Errorf("topology has no stages")
	}

	t := &Topology{
		version: doc.Version,
		stages:  make([]Stage, 0, len(doc.Stages)),
		byID:    make(map[string]int, len(doc.Stages)),
		groups:  doc.Groups,
	}
	for _, s := range doc.Stages {
		if s.ID == "" {
			return nil, fmt.Errorf("topology stage with empty id")
		}
		if _, dup := t.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage id %q", s.ID)
		}
		if s.Rank < 0 {
			return nil, fmt.Errorf("stage %q has negative rank", s.ID)
		}
		if !s.Terminal && len(s.Keywords) == 0 {
			return nil, fmt.Errorf("stage %q has no keywords", s.ID)
		}
		if s.Terminal && len(s.Keywords) > 0 {
			return nil, fmt.Errorf("sentinel stage %q must not have keywords", s.ID)
		}
		if s.Group != "" {
			if _, ok := doc.Groups[s.Group]; !ok {
				return nil, fmt.Errorf("stage %q references unknown group %q", s.ID, s.Group)
			}
		}
		lowered := make([]string, len(s.Keywords))
		for i, kw := range s.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		s.Keywords = lowered
		if s.Label == "" {
			s.Label = s.ID
		}
		t.byID[s.ID] = len(t.stages)
		t.stages = append(t.stages, s)
	}

	sort.SliceStable(t.stages, func(i, j int) bool { return t.stages[i].Rank < t.stages[j].Rank })
	for i, s := range t.stages {
		t.byID[s.ID] = i
	}

	first := t.stages[0]
	last := t.stages[len(t.stages)-1]
	if !first.Terminal || !last.Terminal {
		return nil, fmt.Errorf("topology must start and end with sentinel stages")
	}
	for _, s := range t.stages[1 : len(t.stages)-1] {
		if s.Terminal {
			return nil, fmt.Errorf("sentinel stage %q is not at a graph boundary", s.ID)
		}
	}
	t.entry = first.ID
	t.exit = last.ID
	return t, nil
}

var (
	defaultOnce sync.Once
	defaultTopo *Topology
)

// Default returns the embedded topology, parsed once.
func Default() *Topology {
	defaultOnce.Do(func() {
		t, err := Load(topologyYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded topology invalid: %v", err))
		}
		defaultTopo = t
	})
	return defaultTopo
}

// Version returns the topology document version.
func (t *Topology) Version() int { return t.version }

// Entry returns the id of the entry sentinel.
func (t *Topology) Entry() string { return t.entry }

// Exit returns the id of the exit sentinel.
func (t *Topology) Exit() string { return t.exit }

// Stages returns the stages in canonical rank order.
func (t *Topology) Stages() []Stage {
	out := make([]Stage, len(t.stages))
	copy(out, t.stages)
	return out
}

// Stage looks up a stage by id.
func (t *Topology) Stage(id string) (Stage, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Stage{}, false
	}
	return t.stages[i], true
}

// GroupMode returns "parallel" or "exclusive" for a fork group.
func (t *Topology) GroupMode(group string) string { return t.groups[group] }

// Edges returns the diagram connectors: every stage at one rank connects to
// every stage at the next populated rank.
func (t *Topology) Edges() [][2]string {
	byRank := map[int][]string{}
	ranks := []int{}
	for _, s := range t.stages {
		if len(byRank[s.Rank]) == 0 {
			ranks = append(ranks, s.Rank)
		}
		byRank[s.Rank] = append(byRank[s.Rank], s.ID)
	}
	sort.Ints(ranks)

	var edges [][2]string
	for i := 0; i+1 < len(ranks); i++ {
		for _, from := range byRank[ranks[i]] {
			for _, to := range byRank[ranks[i+1]] {
				edges = append(edges, [2]string{from, to})
			}
		}
	}
	return edges
}
