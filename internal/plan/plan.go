// Package plan loads run-plan files: YAML documents mapping hosts or
// address blocks to ordered command lists, for runs where different hosts
// get different commands.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "fleetrun/internal/errors"
	"fleetrun/internal/target"
)

// Entry is one plan line: a host (or address block) and its commands.
type Entry struct {
	Host     string
	Commands []string
}

// Plan is an ordered set of plan entries. Entry order follows the document,
// so results come back in the order the operator wrote.
type Plan struct {
	entries []Entry
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return p, nil
}

// Parse parses a plan document. The document is a mapping of host entries to
// either a single command or a command list:
//
//	web01: uptime
//	10.0.0.0/30:
//	  - uptime
//	  - df -h
//
// Mapping order is preserved.
func Parse(data []byte) (*Plan, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ferrors.New(ferrors.KindMalformedPlan, err)
	}
	if len(doc.Content) == 0 {
		return &Plan{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ferrors.Newf(ferrors.KindMalformedPlan, "plan root must be a mapping of hosts to commands")
	}

	p := &Plan{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		value := root.Content[i+1]

		commands, err := decodeCommands(value)
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", key.Value, err)
		}
		if len(commands) == 0 {
			return nil, ferrors.Newf(ferrors.KindMalformedPlan, "host %s has no commands", key.Value)
		}

		p.entries = append(p.entries, Entry{Host: key.Value, Commands: commands})
	}
	return p, nil
}

// decodeCommands accepts a scalar command or a sequence of commands.
func decodeCommands(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var command string
		if err := node.Decode(&command); err != nil {
			return nil, ferrors.New(ferrors.KindMalformedPlan, err)
		}
		if command == "" {
			return nil, nil
		}
		return []string{command}, nil

	case yaml.SequenceNode:
		var commands []string
		if err := node.Decode(&commands); err != nil {
			return nil, ferrors.New(ferrors.KindMalformedPlan, err)
		}
		return commands, nil

	default:
		return nil, ferrors.Newf(ferrors.KindMalformedPlan, "commands must be a string or a list of strings")
	}
}

// Entries returns the plan with address blocks expanded into individual
// targets. A host named by several entries keeps the commands of its first
// occurrence.
func (p *Plan) Entries() []Entry {
	var expanded []Entry
	seen := make(map[string]bool)

	for _, entry := range p.entries {
		for _, name := range target.Expand([]string{entry.Host}) {
			if seen[name] {
				continue
			}
			seen[name] = true
			expanded = append(expanded, Entry{Host: name, Commands: entry.Commands})
		}
	}
	return expanded
}

// Len returns the number of raw plan entries.
func (p *Plan) Len() int {
	return len(p.entries)
}
