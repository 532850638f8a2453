package course

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// BuildConceptGraph derives the concept graph from the lesson tree in two passes. The first
// pass walks lessons in course order and records which lesson introduces each key concept and
// which later lessons reuse it. The second wires every declared lesson prerequisite onto that
// lesson's key concepts, links reused concepts to the concepts the same lesson introduces, and
// finally computes depths.
func BuildConceptGraph(modules []Module) ConceptGraph {
	g := ConceptGraph{Concepts: map[string]*ConceptNode{}, Dependencies: []Dependency{}}
	names := map[string]string{} // lower-case -> first seen spelling
	var order []string

	canonical := func(name string) string {
		name = strings.TrimSpace(name)
		if name == "" {
			return ""
		}
		if c, ok := names[strings.ToLower(name)]; ok {
			return c
		}
		return name
	}

	for _, m := range modules {
		for _, l := range m.Lessons {
			for _, raw := range l.KeyConcepts {
				name := canonical(raw)
				if name == "" {
					continue
				}
				if node, ok := g.Concepts[name]; ok {
					if node.IntroducedIn != l.ID {
						node.UsedIn = appendUnique(node.UsedIn, l.ID)
					}
					continue
				}
				names[strings.ToLower(name)] = name
				order = append(order, name)
				g.Concepts[name] = &ConceptNode{
					IntroducedIn:  l.ID,
					Prerequisites: []string{},
					UsedIn:        []string{},
				}
			}
		}
	}

	seen := map[Dependency]bool{}
	addDep := func(d Dependency) {
		if d.From == "" || d.To == "" || strings.EqualFold(d.From, d.To) || seen[d] {
			return
		}
		seen[d] = true
		g.Dependencies = append(g.Dependencies, d)
	}

	var introducedSoFar []string
	for _, m := range modules {
		for _, l := range m.Lessons {
			var reused, introduced []string
			for _, raw := range l.KeyConcepts {
				name := canonical(raw)
				if name == "" {
					continue
				}
				if g.Concepts[name].IntroducedIn == l.ID {
					introduced = appendUnique(introduced, name)
				} else {
					reused = appendUnique(reused, name)
				}
			}
			for _, rawPre := range l.Prerequisites {
				pre := canonical(rawPre)
				if pre == "" {
					continue
				}
				for _, raw := range l.KeyConcepts {
					name := canonical(raw)
					if name == "" || strings.EqualFold(name, pre) {
						continue
					}
					node := g.Concepts[name]
					node.Prerequisites = appendUnique(node.Prerequisites, pre)
					addDep(Dependency{From: pre, To: name, Type: DependencyPrerequisite})
				}
			}
			for _, r := range reused {
				for _, n := range introduced {
					addDep(Dependency{From: r, To: n, Type: DependencyBuildsOn})
				}
			}
			for _, n := range introduced {
				for _, earlier := range introducedSoFar {
					if len(earlier) >= 4 && strings.Contains(strings.ToLower(n), strings.ToLower(earlier)) {
						addDep(Dependency{From: earlier, To: n, Type: DependencyExtends})
					}
				}
			}
			introducedSoFar = append(introducedSoFar, introduced...)
		}
	}

	sort.SliceStable(g.Dependencies, func(i, j int) bool {
		return indexOf(order, g.Dependencies[i].To) < indexOf(order, g.Dependencies[j].To)
	})
	ComputeDepths(&g)
	return g
}

// CanonicalizeConcepts rewrites every lesson's key concepts and prerequisites in place to the
// first spelling seen in course order, so names differing only by case or surrounding space
// resolve to one concept key. Duplicates inside a lesson are dropped. Run it before
// BuildConceptGraph so every key concept has an exact entry in the graph.
func CanonicalizeConcepts(modules []Module) {
	names := map[string]string{}
	canonical := func(raw string) string {
		name := strings.TrimSpace(raw)
		if name == "" {
			return ""
		}
		key := strings.ToLower(name)
		if c, ok := names[key]; ok {
			return c
		}
		names[key] = name
		return name
	}
	rewrite := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, raw := range in {
			if name := canonical(raw); name != "" {
				out = appendUnique(out, name)
			}
		}
		return out
	}
	for mi := range modules {
		for li := range modules[mi].Lessons {
			l := &modules[mi].Lessons[li]
			l.KeyConcepts = rewrite(l.KeyConcepts)
		}
	}
	for mi := range modules {
		for li := range modules[mi].Lessons {
			l := &modules[mi].Lessons[li]
			l.Prerequisites = rewrite(l.Prerequisites)
		}
	}
}

// ComputeDepths sets every node's depth to the length of its longest prerequisite chain. The
// walk is memoised and keeps an on-stack set; a prerequisite reached again while still on the
// stack contributes 0 so malformed cycles terminate. Prerequisites without a node are leaves.
func ComputeDepths(g *ConceptGraph) {
	if g == nil || len(g.Concepts) == 0 {
		return
	}
	memo := make(map[string]int, len(g.Concepts))
	onStack := map[string]bool{}

	var depth func(name string) int
	depth = func(name string) int {
		if d, ok := memo[name]; ok {
			return d
		}
		node, ok := g.Concepts[name]
		if !ok || node == nil {
			return 0
		}
		if onStack[name] {
			return 0
		}
		onStack[name] = true
		best := 0
		for _, p := range node.Prerequisites {
			if strings.EqualFold(p, name) {
				continue
			}
			key := p
			if _, ok := g.Concepts[key]; !ok {
				key = g.lookupKey(p)
			}
			d := 0
			if key != "" && !onStack[key] {
				d = depth(key)
			}
			if d+1 > best {
				best = d + 1
			}
		}
		delete(onStack, name)
		memo[name] = best
		return best
	}

	for _, name := range g.SortedNames() {
		g.Concepts[name].Depth = depth(name)
	}
}

// Lookup finds a concept by name ignoring case and surrounding space.
func (g *ConceptGraph) Lookup(name string) (*ConceptNode, bool) {
	if g == nil {
		return nil, false
	}
	key := g.lookupKey(name)
	if key == "" {
		return nil, false
	}
	return g.Concepts[key], true
}

func (g *ConceptGraph) lookupKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if _, ok := g.Concepts[name]; ok {
		return name
	}
	for k := range g.Concepts {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return ""
}

// SortedNames returns concept names in a deterministic order.
func (g *ConceptGraph) SortedNames() []string {
	out := make([]string, 0, len(g.Concepts))
	for k := range g.Concepts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g ConceptGraph) Clone() ConceptGraph {
	out := ConceptGraph{}
	if g.Concepts != nil {
		out.Concepts = make(map[string]*ConceptNode, len(g.Concepts))
		for k, n := range g.Concepts {
			if n == nil {
				out.Concepts[k] = nil
				continue
			}
			c := *n
			c.Prerequisites = cloneStrings(n.Prerequisites)
			c.UsedIn = cloneStrings(n.UsedIn)
			out.Concepts[k] = &c
		}
	}
	if g.Dependencies != nil {
		out.Dependencies = append([]Dependency{}, g.Dependencies...)
	}
	return out
}

func (g *ConceptGraph) normalize() {
	if g.Concepts == nil {
		g.Concepts = map[string]*ConceptNode{}
	}
	for k, n := range g.Concepts {
		if strings.TrimSpace(k) == "" {
			delete(g.Concepts, k)
			continue
		}
		if n == nil {
			n = &ConceptNode{}
			g.Concepts[k] = n
		}
		n.Prerequisites = nonNilStrings(n.Prerequisites)
		n.UsedIn = nonNilStrings(n.UsedIn)
		if n.Depth < 0 {
			n.Depth = 0
		}
	}
	if g.Dependencies == nil {
		g.Dependencies = []Dependency{}
	}
}

// UnmarshalJSON accepts concepts either as an object keyed by name or as a list of
// [name, node] pairs. Anything else decodes to an empty concept map.
func (g *ConceptGraph) UnmarshalJSON(data []byte) error {
	var aux struct {
		Concepts     json.RawMessage `json:"concepts"`
		Dependencies []Dependency    `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.Dependencies = aux.Dependencies
	g.Concepts = decodeConcepts(aux.Concepts)
	return nil
}

func decodeConcepts(raw json.RawMessage) map[string]*ConceptNode {
	out := map[string]*ConceptNode{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out
	}
	switch raw[0] {
	case '{':
		var m map[string]*ConceptNode
		if err := json.Unmarshal(raw, &m); err == nil {
			for k, v := range m {
				out[k] = v
			}
		}
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return out
		}
		for _, e := range entries {
			var pair []json.RawMessage
			if err := json.Unmarshal(e, &pair); err != nil || len(pair) != 2 {
				continue
			}
			var name string
			if err := json.Unmarshal(pair[0], &name); err != nil || strings.TrimSpace(name) == "" {
				continue
			}
			var node ConceptNode
			if err := json.Unmarshal(pair[1], &node); err != nil {
				continue
			}
			out[name] = &node
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func indexOf(list []string, v string) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return len(list)
}
