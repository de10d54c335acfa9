// Package codeplanner is the alternative agent runtime: the LLM emits a
// small JSON program of tool invocations with output-to-input binding,
// interpreted by a bounded executor, with self-correction and reflection
// loops around it.
package codeplanner

import (
	"fmt"

	"github.com/colegio-digital/gestor/pkg/agent"
)

// Step is one tool invocation of a program. Args values may reference
// earlier outputs with "$name" or "$name.path.to.field"; the builtins
// $phone and $text carry the inbound handle and message.
type Step struct {
	ID     string                 `json:"id"`
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args,omitempty"`
	SaveAs string                 `json:"save_as,omitempty"`
}

// Program is the plan emitted by the LLM. Result maps output keys to
// references over the step outputs.
type Program struct {
	Steps  []Step                 `json:"steps"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// name returns the binding name a step's output is stored under.
func (s Step) name() string {
	if s.SaveAs != "" {
		return s.SaveAs
	}
	return s.ID
}

// Validate rejects structurally unusable programs before execution.
func (p *Program) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("program has no steps")
	}
	seen := map[string]bool{}
	for i, step := range p.Steps {
		if step.Tool == "" {
			return fmt.Errorf("step %d has no tool", i+1)
		}
		if step.ID == "" {
			return fmt.Errorf("step %d has no id", i+1)
		}
		if seen[step.name()] {
			return fmt.Errorf("duplicate binding name %q", step.name())
		}
		seen[step.name()] = true
	}
	return nil
}

// ParseProgram decodes a model response into a validated Program.
func ParseProgram(content string) (*Program, error) {
	var program Program
	if err := agent.DecodeJSON(content, &program); err != nil {
		return nil, err
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}
	return &program, nil
}
