// Package fingerprint wraps the external fingerprint cross-check tool.
package fingerprint

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

// Input defines the arguments for the 'fingerprint_check' capability.
type Input struct {
	Bam  string `hcl:"bam"`
	Db   string `hcl:"db"`
	Tool string `hcl:"tool,optional"`
}

// OnCrosscheck verifies the sample's fingerprints against the haplotype
// database. The tool prints the report path on stdout.
func OnCrosscheck(ctx context.Context, input *Input) (cty.Value, error) {
	tool := input.Tool
	if tool == "" {
		tool = "crosscheck-fingerprints"
	}

	ctxlog.FromContext(ctx).Debug("Cross-checking fingerprints.", "tool", tool, "bam", input.Bam, "db", input.Db)
	cmd := exec.CommandContext(ctx, tool, "--input", input.Bam, "--haplotype-db", input.Db)
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
	r.Register("fingerprint_check", &capability.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnCrosscheck,
	})
}
