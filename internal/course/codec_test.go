package course

import "testing"

func TestDecodeStateAcceptsEntryListConcepts(t *testing.T) {
	raw := []byte(`{
		"course": {"title": "T"},
		"modules": "not-a-list",
		"conceptGraph": {"concepts": [["BATNA", {"introducedIn": "l1", "prerequisites": [], "usedIn": ["l2"], "depth": 0}]], "dependencies": []},
		"metadata": {"iterations": 1, "currentPhase": "validating"}
	}`)
	s, err := DecodeState(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Modules == nil || len(s.Modules) != 0 {
		t.Fatalf("modules should coerce to empty list: %+v", s.Modules)
	}
	n, ok := s.ConceptGraph.Concepts["BATNA"]
	if !ok || n.IntroducedIn != "l1" || len(n.UsedIn) != 1 {
		t.Fatalf("concept not restored: %+v", s.ConceptGraph.Concepts)
	}
	if s.Metadata.CurrentPhase != PhaseValidating || s.Metadata.Iterations != 1 {
		t.Fatalf("metadata lost: %+v", s.Metadata)
	}
	if s.Alignment.Issues == nil {
		t.Fatalf("alignment not defaulted")
	}
}

func TestEncodeDecodeKeepsConceptMap(t *testing.T) {
	s := sampleState()
	s.ConceptGraph = BuildConceptGraph(s.Modules)
	data, err := EncodeState(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeState(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back.ConceptGraph.Concepts) != len(s.ConceptGraph.Concepts) {
		t.Fatalf("concepts lost across boundary")
	}
}
