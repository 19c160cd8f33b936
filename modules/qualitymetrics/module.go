// Package qualitymetrics wraps the external metrics-collection tool.
package qualitymetrics

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
)

// Module implements the capability.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'quality_metrics' capability.
type Input struct {
	Bam  string `hcl:"bam"`
	Tool string `hcl:"tool,optional"`
}

// OnCollectMetrics runs the metrics tool over one BAM. The tool prints the
// path of the written metrics report on stdout.
func OnCollectMetrics(ctx context.Context, input *Input) (cty.Value, error) {
	tool := input.Tool
	if tool == "" {
		tool = "collect-metrics"
	}

	ctxlog.FromContext(ctx).Debug("Collecting quality metrics.", "tool", tool, "bam", input.Bam)
	cmd := exec.CommandContext(ctx, tool, "--input", input.Bam)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("%s: %w: %s", tool, err, strings.TrimSpace(stderr.String()))
	}

	return cty.ObjectVal(map[string]cty.Value{
		"report": cty.StringVal(strings.TrimSpace(stdout.String())),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *capability.Registry) {
	r.Register("quality_metrics", &capability.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnCollectMetrics,
	})
}
