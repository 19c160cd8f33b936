package dag

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/model"
)

func loadWorkflow(t *testing.T, src string) (*model.Workflow, context.Context) {
	t.Helper()
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(src), 0644))
	wf, err := model.LoadWorkflow(ctx, dir)
	require.NoError(t, err)
	return wf, ctx
}

func TestBuild_ImplicitDependencyLinks(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "a" {
			capability = "noop"
		}
		task "b" {
			capability = "noop"
			arguments { data = task.a.output.value }
		}
	`)

	graph, err := Build(ctx, wf)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)

	b := graph.Nodes["task.b"]
	require.Contains(t, b.Deps, "task.a")

	roots := graph.Roots()
	require.Len(t, roots, 1)
	require.Equal(t, "task.a", roots[0].ID)
}

func TestBuild_ExplicitDependsOn(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "a" { capability = "noop" }
		task "b" {
			capability = "noop"
			depends_on = ["task.a"]
		}
	`)

	graph, err := Build(ctx, wf)
	require.NoError(t, err)
	require.Contains(t, graph.Nodes["task.b"].Deps, "task.a")
}

func TestBuild_CycleDetected(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "a" {
			capability = "noop"
			depends_on = ["task.b"]
		}
		task "b" {
			capability = "noop"
			arguments { data = task.a.output.value }
		}
	`)

	_, err := Build(ctx, wf)
	var cycleErr *model.CycleDetectedError
	require.ErrorAs(t, err, &cycleErr)
}

func TestBuild_UndeclaredReference(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "a" {
			capability = "noop"
			arguments { data = task.ghost.output.value }
		}
	`)

	_, err := Build(ctx, wf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "undeclared")
}

func TestBuild_UnknownRootSymbol(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "a" {
			capability = "noop"
			arguments { data = step.x.output }
		}
	`)

	_, err := Build(ctx, wf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown symbol")
}

func TestBuild_WhenSubgraphAndParentEdges(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		input "enabled" {
			type    = bool
			default = true
		}
		task "prep" { capability = "noop" }
		when "gate" {
			condition = input.enabled
			task "first" {
				capability = "noop"
				arguments { data = task.prep.output.value }
			}
			task "second" {
				capability = "noop"
				arguments { data = task.first.output.value }
			}
			output "result" { value = task.second.output.value }
		}
	`)

	graph, err := Build(ctx, wf)
	require.NoError(t, err)

	gate := graph.Nodes["when.gate"]
	require.NotNil(t, gate.Subgraph)
	require.Len(t, gate.Subgraph.Nodes, 2)

	// The nested task's reference to task.prep binds the gate, not the
	// nested node; the internal first->second edge stays in the subgraph.
	require.Contains(t, gate.Deps, "task.prep")
	require.Contains(t, gate.Subgraph.Nodes["task.second"].Deps, "task.first")
	require.NotContains(t, gate.Subgraph.Nodes["task.first"].Deps, "task.prep")
}

func TestBuild_ScatterOverLinksProvider(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "shard" { capability = "noop" }
		scatter "fan" {
			over = task.shard.output.units
			task "work" {
				capability = "noop"
				arguments { unit = each.value }
			}
		}
		reduce "total" {
			over = scatter.fan.outputs
			op   = "sum"
		}
	`)

	graph, err := Build(ctx, wf)
	require.NoError(t, err)
	require.Contains(t, graph.Nodes["scatter.fan"].Deps, "task.shard")
	require.Contains(t, graph.Nodes["reduce.total"].Deps, "scatter.fan")
}

func TestNode_SkipAndStartAreExclusive(t *testing.T) {
	n := newNode("task.x", "x", TaskNode)
	require.True(t, n.TrySkip())
	require.False(t, n.TryStart())
	require.Equal(t, Skipped, n.State())

	m := newNode("task.y", "y", TaskNode)
	require.True(t, m.TryStart())
	require.False(t, m.TrySkip())
	require.Equal(t, Running, m.State())
}

func TestBuild_SelfDependencyRejected(t *testing.T) {
	wf, ctx := loadWorkflow(t, `
		task "a" {
			capability = "noop"
			depends_on = ["task.a"]
		}
	`)

	_, err := Build(ctx, wf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "itself")
}
