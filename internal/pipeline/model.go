package pipeline

import "fmt"

// Kind is the registration family a stage belongs to.
type Kind string

const (
	KindAffine       Kind = "affine"
	KindAnatomicalNL Kind = "anatomical-nl"
	KindTensorNL     Kind = "tensor-nl"
	KindMCMNL        Kind = "mcm-nl"
)

// Modality is the image type a stage registers.
type Modality int

const (
	Anatomical Modality = iota
	Tensor
	MCM
)

func (m Modality) String() string {
	switch m {
	case Anatomical:
		return "anatomical"
	case Tensor:
		return "tensor"
	case MCM:
		return "mcm"
	default:
		return fmt.Sprintf("modality(%d)", int(m))
	}
}

// Modality returns the image type the kind operates on.
func (k Kind) Modality() Modality {
	switch k {
	case KindTensorNL:
		return Tensor
	case KindMCMNL:
		return MCM
	default:
		return Anatomical
	}
}

// DefaultTool returns the Anima registration executable for the kind.
func (k Kind) DefaultTool() string {
	switch k {
	case KindAffine:
		return "animaPyramidalBMRegistration"
	case KindAnatomicalNL:
		return "animaDenseSVFBMRegistration"
	case KindTensorNL:
		return "animaDenseTensorSVFBMRegistration"
	case KindMCMNL:
		return "animaDenseMCMSVFBMRegistration"
	default:
		return ""
	}
}

// TransformExt is the file extension of the elementary transform a stage of
// this kind writes: a linear matrix for affine, a dense field otherwise.
func (k Kind) TransformExt() string {
	if k == KindAffine {
		return ".txt"
	}
	return ".nrrd"
}

func (k Kind) valid() bool {
	switch k {
	case KindAffine, KindAnatomicalNL, KindTensorNL, KindMCMNL:
		return true
	}
	return false
}

// Stage is one registration step.
type Stage struct {
	ID    string
	Kind  Kind
	After string // parent stage ID, empty for a root
	Tool  string
	Flags []string
}

// Strategy names a complete registration pipeline by its terminal stage.
type Strategy struct {
	Name     string
	Stage    string
	Artifact string
}

// Pipeline is a validated stage tree plus the strategies defined on it.
type Pipeline struct {
	stages     map[string]*Stage
	stageOrder []string
	strategies []*Strategy
}

// Stage returns the stage with the given ID.
func (p *Pipeline) Stage(id string) (*Stage, bool) {
	s, ok := p.stages[id]
	return s, ok
}

// Stages returns every stage in declaration order.
func (p *Pipeline) Stages() []*Stage {
	out := make([]*Stage, 0, len(p.stageOrder))
	for _, id := range p.stageOrder {
		out = append(out, p.stages[id])
	}
	return out
}

// Strategies returns every strategy in declaration order.
func (p *Pipeline) Strategies() []*Strategy {
	return append([]*Strategy(nil), p.strategies...)
}

// Strategy looks up a strategy by name.
func (p *Pipeline) Strategy(name string) (*Strategy, bool) {
	for _, s := range p.strategies {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Chain returns the stages from the root down to stageID, in application
// order.
func (p *Pipeline) Chain(stageID string) []*Stage {
	var chain []*Stage
	for id := stageID; id != ""; {
		s, ok := p.stages[id]
		if !ok {
			return nil
		}
		chain = append(chain, s)
		id = s.After
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Select returns the named strategies in declaration order. An empty list
// selects every strategy.
func (p *Pipeline) Select(names []string) ([]*Strategy, error) {
	if len(names) == 0 {
		return p.Strategies(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := p.Strategy(n); !ok {
			return nil, fmt.Errorf("unknown strategy %q", n)
		}
		want[n] = true
	}
	var out []*Strategy
	for _, s := range p.strategies {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}
