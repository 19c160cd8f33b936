// Package contamination wraps the external contamination-estimation tool.
package contamination

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
)

// Module implements the capability.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'contamination_check' capability.
type Input struct {
	Bam  string `hcl:"bam"`
	Tool string `hcl:"tool,optional"`
}

// OnEstimate runs the contamination estimator. The tool prints two lines on
// stdout: the report path and the contamination fraction.
func OnEstimate(ctx context.Context, input *Input) (cty.Value, error) {
	tool := input.Tool
	if tool == "" {
		tool = "verify-bam-id"
	}

	ctxlog.FromContext(ctx).Debug("Estimating contamination.", "tool", tool, "bam", input.Bam)
	cmd := exec.CommandContext(ctx, tool, "--input", input.Bam)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("%s: %w: %s", tool, err, strings.TrimSpace(stderr.String()))
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	result := map[string]cty.Value{
		"report":   cty.StringVal(strings.TrimSpace(lines[0])),
		"fraction": cty.NullVal(cty.Number),
	}
	if len(lines) > 1 {
		fraction, err := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%s: unparseable contamination fraction %q", tool, lines[1])
		}
		result["fraction"] = cty.NumberFloatVal(fraction)
	}

	return cty.ObjectVal(result), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *capability.Registry) {
	r.Register("contamination_check", &capability.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnEstimate,
	})
}
