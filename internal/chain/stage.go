package chain

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/rotisserie/eris"
)

// Stage is one reasoning step. Its prompt is rendered from Instruction
// with the evidence (when UsesEvidence) and the outputs of DependsOn.
type Stage struct {
	// Key names the stage output in the report
	Key string

	// Name is the human task name used in failure markers
	Name string

	// DependsOn lists keys of earlier stages whose outputs feed the prompt
	DependsOn []string

	UsesEvidence bool

	// Instruction is a text/template rendered with promptData
	Instruction string

	// Shape is an example of the JSON object the stage must produce
	Shape string

	// Finalize optionally adjusts a successful output
	Finalize func(v structured.Value, in Input) structured.Value

	tmpl *template.Template
}

// Input is everything a chain run can draw on
type Input struct {
	Subject  string
	Entities []model.Entity
	Evidence []model.EvidenceBlob
}

// promptData is the template context of one stage
type promptData struct {
	Subject  string
	Entities string
	Evidence string
	upstream map[string]string
}

// Upstream returns the JSON of a dependency, or "{}" when it is missing
// or failed
func (d promptData) Upstream(key string) string {
	if s, ok := d.upstream[key]; ok {
		return s
	}
	return "{}"
}

func (s *Stage) compile() error {
	if s.Key == "" {
		return eris.New("stage key is required")
	}
	if s.Name == "" {
		s.Name = s.Key
	}
	tmpl, err := template.New(s.Key).Option("missingkey=zero").Parse(s.Instruction)
	if err != nil {
		return eris.Wrapf(err, "stage %s: parse instruction", s.Key)
	}
	s.tmpl = tmpl
	return nil
}

func (s *Stage) render(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", eris.Wrapf(err, "stage %s: render prompt", s.Key)
	}
	return strings.TrimSpace(buf.String()), nil
}

// validateOrder checks keys are unique and every dependency names an
// earlier stage
func validateOrder(stages []Stage) error {
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if seen[s.Key] {
			return eris.Errorf("duplicate stage key %q", s.Key)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return eris.Errorf("stage %q depends on %q, which does not run before it", s.Key, dep)
			}
		}
		seen[s.Key] = true
	}
	return nil
}

// upstreamJSON encodes usable dependency outputs; failed ones are left out
func upstreamJSON(outputs model.StageOutputs, deps []string) map[string]string {
	out := make(map[string]string, len(deps))
	for _, dep := range deps {
		v := outputs.Get(dep)
		if !v.Usable() {
			continue
		}
		data, err := v.MarshalJSON()
		if err != nil {
			continue
		}
		out[dep] = string(data)
	}
	return out
}
