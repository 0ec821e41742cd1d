package hierarchy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Def is the on-disk YAML representation of a coding system hierarchy.
//
// Example:
//
//	name: snomedct-demo
//	codes:
//	  - code: "195967001"
//	    term: Asthma
//	  - code: "304527002"
//	    term: Acute asthma
//	edges:
//	  - parent: "195967001"
//	    child: "304527002"
type Def struct {
	Name  string    `yaml:"name"`
	Codes []CodeDef `yaml:"codes"`
	Edges []EdgeDef `yaml:"edges"`
}

// CodeDef is a single code entry in a hierarchy file.
type CodeDef struct {
	Code string `yaml:"code"`
	Term string `yaml:"term"`
}

// EdgeDef is a single parent/child edge in a hierarchy file.
type EdgeDef struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
}

// Parse builds a Hierarchy from YAML hierarchy definition bytes.
func Parse(data []byte) (*Hierarchy, error) {
	var def Def
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing hierarchy yaml: %w", err)
	}

	codes := make(map[string]string, len(def.Codes))
	for _, c := range def.Codes {
		if c.Code == "" {
			return nil, &MalformedError{Reason: "code entry with empty code"}
		}
		if _, ok := codes[c.Code]; ok {
			return nil, &MalformedError{Reason: fmt.Sprintf("duplicate code %q", c.Code)}
		}
		codes[c.Code] = c.Term
	}

	edges := make([]Edge, len(def.Edges))
	for i, e := range def.Edges {
		edges[i] = Edge{Parent: e.Parent, Child: e.Child}
	}

	return New(codes, edges)
}

// LoadFile reads and parses a hierarchy definition file.
func LoadFile(path string) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hierarchy file: %w", err)
	}
	return Parse(data)
}
