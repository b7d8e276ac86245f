package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Graph is an ordered list of steps; every stage within one step runs
// concurrently and their deltas merge only after the whole step finishes.
type Graph struct {
	name  string
	steps [][]StageSpec
}

// NewGraph validates the stage wiring: every required key must be provided by
// an earlier step (or be part of the initial state), and no two stages may
// provide the same key.
func NewGraph(name string, initial []string, steps ...[]StageSpec) (*Graph, error) {
	available := map[string]bool{}
	for _, k := range initial {
		available[k] = true
	}
	seen := map[string]bool{}
	for i, step := range steps {
		for _, stage := range step {
			if seen[stage.Key] {
				return nil, fmt.Errorf("pipeline: graph %s declares stage %s twice", name, stage.Key)
			}
			seen[stage.Key] = true
			for _, req := range stage.Requires {
				if !available[req] {
					return nil, fmt.Errorf("pipeline: graph %s stage %s requires %s before any stage provides it (step %d)", name, stage.Key, req, i)
				}
			}
		}
		// Provided keys become visible to the NEXT step, not to siblings.
		for _, stage := range step {
			for _, prov := range stage.Provides {
				if available[prov] {
					return nil, fmt.Errorf("pipeline: graph %s stage %s re-provides %s", name, stage.Key, prov)
				}
				available[prov] = true
			}
		}
	}
	return &Graph{name: name, steps: steps}, nil
}

// NewAnalysisGraph builds the full loss-review graph: intake, then technical
// and news in parallel, then causes, behavior, report, and finally the
// terminal chat-entry and expert stages so every run ends with a reply.
func NewAnalysisGraph() (*Graph, error) {
	return NewGraph("analysis", []string{KeyInput},
		[]StageSpec{StageIntake()},
		[]StageSpec{StageTechnical(), StageNews()},
		[]StageSpec{StageCauses()},
		[]StageSpec{StageBehavior()},
		[]StageSpec{StageReport()},
		[]StageSpec{StageChatEntry()},
		[]StageSpec{StageExpert()},
	)
}

// NewChatGraph builds the expert-QA graph run against a stored analysis state.
func NewChatGraph() (*Graph, error) {
	return NewGraph("chat", []string{KeyInput},
		[]StageSpec{StageChatEntry()},
		[]StageSpec{StageExpert()},
	)
}

// MustAnalysisGraph panics on a miswired graph; wiring is static so a failure
// here is a programming error caught at startup.
func MustAnalysisGraph() *Graph {
	g, err := NewAnalysisGraph()
	if err != nil {
		panic(err)
	}
	return g
}

func MustChatGraph() *Graph {
	g, err := NewChatGraph()
	if err != nil {
		panic(err)
	}
	return g
}

// Run executes the graph over the state. Model trouble degrades into fallback
// records inside the stages; the only errors surfacing here are context
// cancellation and wiring bugs. An InputError set by intake stops the run
// after its step.
func (g *Graph) Run(ctx context.Context, rt *Runtime, s *State) error {
	for _, step := range g.steps {
		for _, stage := range step {
			for _, req := range stage.Requires {
				if !s.has(req) {
					return fmt.Errorf("pipeline: graph %s stage %s missing required key %s", g.name, stage.Key, req)
				}
			}
		}

		deltas := make([]Delta, len(step))
		eg, egCtx := errgroup.WithContext(ctx)
		for i, stage := range step {
			eg.Go(func() error {
				d, err := stage.Run(egCtx, rt, s)
				if err != nil {
					return fmt.Errorf("stage %s: %w", stage.Key, err)
				}
				deltas[i] = d
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		for i, stage := range step {
			if err := s.apply(stage.Key, deltas[i]); err != nil {
				return err
			}
		}
		for _, stage := range step {
			for _, prov := range stage.Provides {
				if !s.has(prov) {
					return fmt.Errorf("pipeline: graph %s stage %s did not provide %s", g.name, stage.Key, prov)
				}
			}
		}

		if s.InputError != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
