// Package chain runs the staged reasoning pipeline over gathered evidence.
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/genesis/internal/llm"
	"github.com/ppiankov/genesis/internal/metrics"
	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/sanitize"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultEvidenceLimit = 30000

// Chain executes stages strictly in order. A stage failure is recorded as
// an error marker and never stops later stages.
type Chain struct {
	invoker       *Invoker
	stages        []Stage
	evidenceLimit int
	logger        *zap.Logger
}

// Options tunes a Chain
type Options struct {
	// EvidenceLimit caps the evidence characters placed in one prompt
	EvidenceLimit int
	Logger        *zap.Logger
}

// New validates and compiles stages
func New(invoker *Invoker, stages []Stage, opts Options) (*Chain, error) {
	if len(stages) == 0 {
		return nil, eris.New("chain needs at least one stage")
	}

	compiled := make([]Stage, len(stages))
	copy(compiled, stages)
	for i := range compiled {
		if err := compiled[i].compile(); err != nil {
			return nil, err
		}
	}
	if err := validateOrder(compiled); err != nil {
		return nil, err
	}

	limit := opts.EvidenceLimit
	if limit <= 0 {
		limit = defaultEvidenceLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &Chain{invoker: invoker, stages: compiled, evidenceLimit: limit, logger: logger}, nil
}

// Stages returns the stage keys in execution order
func (c *Chain) Stages() []string {
	keys := make([]string, len(c.stages))
	for i, s := range c.stages {
		keys[i] = s.Key
	}
	return keys
}

// Run attempts every stage exactly once and returns one output per stage
func (c *Chain) Run(ctx context.Context, in Input) model.StageOutputs {
	evidence := c.evidenceText(in.Evidence)
	entities := entityList(in.Entities)
	outputs := make(model.StageOutputs, 0, len(c.stages))

	for i := range c.stages {
		stage := &c.stages[i]

		data := promptData{
			Subject:  in.Subject,
			Entities: entities,
			upstream: upstreamJSON(outputs, stage.DependsOn),
		}
		if stage.UsesEvidence {
			data.Evidence = evidence
		}

		value := c.runStage(ctx, stage, data, in)
		outputs = append(outputs, model.StageOutput{Key: stage.Key, Value: value})
	}

	c.logger.Info("chain finished",
		zap.String("subject", in.Subject),
		zap.Int("stages", len(outputs)),
		zap.Int("failed", outputs.Failed()))
	return outputs
}

func (c *Chain) runStage(ctx context.Context, stage *Stage, data promptData, in Input) structured.Value {
	prompt, err := stage.render(data)
	if err != nil {
		metrics.RecordStage(stage.Key, false)
		c.logger.Error("prompt rendering failed", zap.String("stage", stage.Key), zap.Error(err))
		return failureMarker(stage.Name, err)
	}

	value, err := c.invoker.Invoke(ctx, stage.Name, llm.GenerateRequest{
		Prompt:   prompt,
		JSONMode: true,
		Shape:    stage.Shape,
	})
	metrics.RecordStage(stage.Key, err == nil)
	if err != nil {
		return failureMarker(stage.Name, err)
	}

	if stage.Finalize != nil {
		value = stage.Finalize(value, in)
	}
	return value
}

// RunSingle asks for every stage's output in one call. Unlike Run, a
// provider or extraction failure is returned as an error because there
// is nothing left to report. Stages absent from the answer are recorded
// as error markers.
func (c *Chain) RunSingle(ctx context.Context, in Input) (model.StageOutputs, error) {
	var shape strings.Builder
	var tasks strings.Builder
	shape.WriteString("{\n")
	for i, s := range c.stages {
		fmt.Fprintf(&shape, "  %q: %s", s.Key, strings.TrimSpace(s.Shape))
		if i < len(c.stages)-1 {
			shape.WriteString(",")
		}
		shape.WriteString("\n")
		fmt.Fprintf(&tasks, "- %s (%s)\n", s.Key, s.Name)
	}
	shape.WriteString("}")

	prompt := fmt.Sprintf(singlePrompt, in.Subject, entityList(in.Entities), tasks.String(), c.evidenceText(in.Evidence))

	value, err := c.invoker.Invoke(ctx, "single_report", llm.GenerateRequest{
		Prompt:   prompt,
		JSONMode: true,
		Shape:    shape.String(),
	})
	if err != nil {
		return nil, err
	}

	outputs := make(model.StageOutputs, 0, len(c.stages))
	for _, s := range c.stages {
		v := value.Get(s.Key)
		switch {
		case v.Kind() != structured.KindObject:
			v = structured.ErrorMarker(taskFailed(s.Name), "stage missing from single-call response")
		case s.Finalize != nil && !v.IsErrorMarker():
			v = s.Finalize(v, in)
		}
		metrics.RecordStage(s.Key, v.Usable())
		outputs = append(outputs, model.StageOutput{Key: s.Key, Value: v})
	}
	return outputs, nil
}

// evidenceText labels each entity's blob and caps the whole at the limit
func (c *Chain) evidenceText(blobs []model.EvidenceBlob) string {
	parts := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if b.Empty() {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Data for %s ---\n%s", b.EntityName, b.Text))
	}
	return sanitize.Truncate(strings.Join(parts, "\n\n"), c.evidenceLimit)
}

func entityList(entities []model.Entity) string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.Manufacturer != "" {
			names = append(names, fmt.Sprintf("%s (%s)", e.Name, e.Manufacturer))
		} else {
			names = append(names, e.Name)
		}
	}
	return strings.Join(names, ", ")
}

func taskFailed(name string) string {
	return fmt.Sprintf("AI task '%s' failed.", name)
}

func failureMarker(name string, err error) structured.Value {
	return structured.ErrorMarker(taskFailed(name), err.Error())
}

const singlePrompt = `You are a senior market analyst and robotics engineer. Analyze the humanoid robot '%s' against its peers: %s.
Produce every section below in one JSON object keyed by section name:
%s
Base every statement on the compiled data. Do not add any text outside the JSON object.

### Compiled Data:
%s`
