package pipeline

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/ocommowi/regeval/internal/ctxlog"
	"github.com/ocommowi/regeval/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

//go:embed default.hcl
var defaultSource []byte

// ErrInvalidPipeline is wrapped by every semantic validation failure.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// Vars are the values exposed to expressions in a pipeline file.
type Vars struct {
	// Threads is the per-tool thread count, available as `threads`.
	// Zero means the number of CPUs.
	Threads int
}

func (v Vars) evalContext() *hcl.EvalContext {
	threads := v.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"threads": cty.NumberIntVal(int64(threads)),
		},
	}
}

// fileRoot is decoded from a whole pipeline file.
type fileRoot struct {
	Stages     []*stageBlock    `hcl:"stage,block"`
	Strategies []*strategyBlock `hcl:"strategy,block"`
}

type stageBlock struct {
	ID    string   `hcl:"id,label"`
	Kind  string   `hcl:"kind"`
	After *string  `hcl:"after,optional"`
	Tool  *string  `hcl:"tool,optional"`
	Flags []string `hcl:"flags,optional"`
}

type strategyBlock struct {
	Name     string  `hcl:"name,label"`
	Stage    string  `hcl:"stage"`
	Artifact *string `hcl:"artifact,optional"`
}

// Default returns the embedded eight-strategy pipeline.
func Default(ctx context.Context, vars Vars) (*Pipeline, error) {
	return Parse(ctx, defaultSource, "default.hcl", vars)
}

// Load reads a pipeline file from disk.
func Load(ctx context.Context, path string, vars Vars) (*Pipeline, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}
	return Parse(ctx, src, path, vars)
}

// Parse decodes and validates a pipeline definition.
func Parse(ctx context.Context, src []byte, filename string, vars Vars) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing pipeline definition.", "file", filename)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, vars.evalContext(), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline %s: %w", filename, diags)
	}

	p, err := translate(&root)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", filename, err)
	}

	logger.Debug("Pipeline loaded.", "stages", len(p.stageOrder), "strategies", len(p.strategies))
	return p, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPipeline, fmt.Sprintf(format, args...))
}

// translate converts decoded blocks into a Pipeline and checks that the
// stages form a tree every strategy can be resolved against.
func translate(root *fileRoot) (*Pipeline, error) {
	p := &Pipeline{stages: make(map[string]*Stage)}
	graph := dag.New()

	for _, b := range root.Stages {
		if _, dup := p.stages[b.ID]; dup {
			return nil, invalidf("duplicate stage %q", b.ID)
		}
		kind := Kind(b.Kind)
		if !kind.valid() {
			return nil, invalidf("stage %q: unknown kind %q", b.ID, b.Kind)
		}
		s := &Stage{ID: b.ID, Kind: kind, Tool: kind.DefaultTool(), Flags: b.Flags}
		if b.After != nil {
			s.After = *b.After
		}
		if b.Tool != nil && *b.Tool != "" {
			s.Tool = *b.Tool
		}
		p.stages[s.ID] = s
		p.stageOrder = append(p.stageOrder, s.ID)
		graph.AddNode(s.ID)
	}

	for _, s := range p.Stages() {
		if s.After == "" {
			continue
		}
		if _, ok := p.stages[s.After]; !ok {
			return nil, invalidf("stage %q runs after unknown stage %q", s.ID, s.After)
		}
		if err := graph.AddEdge(s.After, s.ID); err != nil {
			return nil, invalidf("stage %q: %v", s.ID, err)
		}
	}
	if err := graph.DetectCycles(); err != nil {
		return nil, invalidf("%v", err)
	}

	names := make(map[string]bool)
	artifacts := make(map[string]string)
	for _, b := range root.Strategies {
		if names[b.Name] {
			return nil, invalidf("duplicate strategy %q", b.Name)
		}
		names[b.Name] = true
		if _, ok := p.stages[b.Stage]; !ok {
			return nil, invalidf("strategy %q ends at unknown stage %q", b.Name, b.Stage)
		}
		artifact := strings.ToLower(b.Name)
		if b.Artifact != nil && *b.Artifact != "" {
			artifact = *b.Artifact
		}
		if other, dup := artifacts[artifact]; dup {
			return nil, invalidf("strategies %q and %q share artifact name %q", other, b.Name, artifact)
		}
		artifacts[artifact] = b.Name
		p.strategies = append(p.strategies, &Strategy{Name: b.Name, Stage: b.Stage, Artifact: artifact})
	}
	if len(p.strategies) == 0 {
		return nil, invalidf("no strategy defined")
	}
	return p, nil
}
