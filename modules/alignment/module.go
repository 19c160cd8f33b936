// Package alignment wraps the external aligner and duplicate-marking tools.
// The engine treats both as opaque commands: arguments in, artifact paths
// out. Everything the tools actually compute is their business.
package alignment

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/seqflow-io/seqflow/internal/capability"
	"github.com/seqflow-io/seqflow/internal/ctxlog"
)

// Module implements the capability.Module interface for this package.
type Module struct{}

// AlignInput defines the arguments for the 'alignment' capability.
type AlignInput struct {
	// Unit is one read unit as declared in the workflow inputs; its shape
	// is the tool's concern, so it is passed through as serialized JSON.
	Unit      cty.Value `hcl:"unit"`
	Reference string    `hcl:"reference"`
	Tool      string    `hcl:"tool,optional"`
}

// MarkDupsInput defines the arguments for the 'duplicate_marking' capability.
type MarkDupsInput struct {
	// Bams is the ordered list of aligned outputs; elements may be bare
	// paths or objects carrying a 'bam' attribute.
	Bams cty.Value `hcl:"bams"`
	Tool string    `hcl:"tool,optional"`
}

// OnAlign invokes the aligner for one read unit. The tool prints the output
// BAM path on stdout; its size feeds downstream threshold checks.
func OnAlign(ctx context.Context, input *AlignInput) (cty.Value, error) {
	tool := input.Tool
	if tool == "" {
		tool = "bwa-mem2"
	}

	unitJSON, err := ctyjson.Marshal(input.Unit, input.Unit.Type())
	if err != nil {
		return cty.NilVal, fmt.Errorf("encoding read unit: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("Running aligner.", "tool", tool, "reference", input.Reference)
	bamPath, err := runTool(ctx, tool, "--reference", input.Reference, "--unit", string(unitJSON))
	if err != nil {
		return cty.NilVal, err
	}

	info, err := os.Stat(bamPath)
	if err != nil {
		return cty.NilVal, fmt.Errorf("aligner reported missing output %s: %w", bamPath, err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"bam":     cty.StringVal(bamPath),
		"size_gb": cty.NumberFloatVal(float64(info.Size()) / 1e9),
	}), nil
}

// OnMarkDuplicates merges the aligned BAMs and marks duplicates.
func OnMarkDuplicates(ctx context.Context, input *MarkDupsInput) (cty.Value, error) {
	tool := input.Tool
	if tool == "" {
		tool = "gatk-markdup"
	}

	paths, err := bamPaths(input.Bams)
	if err != nil {
		return cty.NilVal, err
	}
	if len(paths) == 0 {
		return cty.NilVal, fmt.Errorf("no input BAMs to merge")
	}

	args := make([]string, 0, len(paths)*2)
	for _, p := range paths {
		args = append(args, "--input", p)
	}

	ctxlog.FromContext(ctx).Debug("Marking duplicates.", "tool", tool, "inputs", len(paths))
	out, err := runTool(ctx, tool, args...)
	if err != nil {
		return cty.NilVal, err
	}

	return cty.ObjectVal(map[string]cty.Value{
		"bam": cty.StringVal(out),
	}), nil
}

// bamPaths flattens the bams argument: a collection of either path strings
// or objects with a 'bam' attribute. Null elements are dropped, so a run
// with absent scatter slots merges what is present.
func bamPaths(bams cty.Value) ([]string, error) {
	if bams.IsNull() {
		return nil, nil
	}
	if !bams.CanIterateElements() {
		return nil, fmt.Errorf("bams must be a list, got %s", bams.Type().FriendlyName())
	}
	var paths []string
	for it := bams.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			continue
		}
		switch {
		case elem.Type() == cty.String:
			paths = append(paths, elem.AsString())
		case elem.Type().IsObjectType() && elem.Type().HasAttribute("bam"):
			attr := elem.GetAttr("bam")
			if !attr.IsNull() {
				paths = append(paths, attr.AsString())
			}
		default:
			return nil, fmt.Errorf("bams element is %s, want string or object with 'bam'", elem.Type().FriendlyName())
		}
	}
	return paths, nil
}

// runTool executes one external command and returns its trimmed stdout.
func runTool(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Register registers this package's capabilities with the engine.
func (m *Module) Register(r *capability.Registry) {
	r.Register("alignment", &capability.Handler{
		NewInput: func() any { return new(AlignInput) },
		Fn:       OnAlign,
	})
	r.Register("duplicate_marking", &capability.Handler{
		NewInput: func() any { return new(MarkDupsInput) },
		Fn:       OnMarkDuplicates,
	})
}
