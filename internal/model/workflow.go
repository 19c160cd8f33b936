package model

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/seqflow-io/seqflow/internal/ctxlog"
	"github.com/seqflow-io/seqflow/internal/fsutil"
)

// Workflow is the root container for a workflow definition. A definition may
// be split across many .hcl files; loading consolidates every block into one
// model so the graph builder can resolve references that span files.
type Workflow struct {
	Name        string
	Description string

	Inputs   []*Input
	Tasks    []*Task
	Scatters []*Scatter
	Whens    []*When
	Reduces  []*Reduce
	Outputs  []*Output
}

var workflowFileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "workflow", LabelNames: []string{"name"}},
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "task", LabelNames: []string{"name"}},
		{Type: "scatter", LabelNames: []string{"name"}},
		{Type: "when", LabelNames: []string{"name"}},
		{Type: "reduce", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

var workflowBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
	},
}

// LoadWorkflow finds and parses all .hcl files under path into one Workflow.
func LoadWorkflow(ctx context.Context, path string) (*Workflow, error) {
	logger := ctxlog.FromContext(ctx)

	filePaths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("discovering workflow files under %s: %w", path, err)
	}
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no .hcl workflow files found under %s", path)
	}
	logger.Debug("Found workflow files to load.", "files", filePaths)

	wf := &Workflow{}
	parser := hclparse.NewParser()
	for _, filePath := range filePaths {
		if err := wf.appendFile(filePath, parser); err != nil {
			return nil, err
		}
	}

	if err := wf.validate(); err != nil {
		return nil, err
	}
	logger.Info("Workflow definition loaded.",
		"workflow", wf.Name,
		"tasks", len(wf.Tasks),
		"scatters", len(wf.Scatters),
		"conditionals", len(wf.Whens),
		"reductions", len(wf.Reduces),
		"outputs", len(wf.Outputs),
	)
	return wf, nil
}

func (wf *Workflow) appendFile(filePath string, parser *hclparse.Parser) error {
	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", filePath, diags)
	}

	content, diags := hclFile.Body.Content(workflowFileSchema)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", filePath, diags)
	}

	for _, block := range content.Blocks {
		var err error
		switch block.Type {
		case "workflow":
			if wf.Name != "" {
				return fmt.Errorf("%s: duplicate workflow block '%s', already declared as '%s'", filePath, block.Labels[0], wf.Name)
			}
			wf.Name = block.Labels[0]
			wfContent, wfDiags := block.Body.Content(workflowBodySchema)
			if wfDiags.HasErrors() {
				return fmt.Errorf("%s: invalid workflow block: %w", filePath, wfDiags)
			}
			if attr, ok := wfContent.Attributes["description"]; ok {
				val, descErr := evalStatic(attr.Expr)
				if descErr != nil {
					return fmt.Errorf("%s: workflow description: %w", filePath, descErr)
				}
				if wf.Description, descErr = staticString(val); descErr != nil {
					return fmt.Errorf("%s: workflow description: %w", filePath, descErr)
				}
			}
		case "input":
			var input *Input
			if input, err = newInputFromBlock(block); err == nil {
				wf.Inputs = append(wf.Inputs, input)
			}
		case "task":
			var task *Task
			if task, err = newTaskFromBody(block.Labels[0], block.Body, block.DefRange); err == nil {
				wf.Tasks = append(wf.Tasks, task)
			}
		case "scatter":
			var scatter *Scatter
			if scatter, err = newScatterFromBlock(block); err == nil {
				wf.Scatters = append(wf.Scatters, scatter)
			}
		case "when":
			var when *When
			if when, err = newWhenFromBlock(block); err == nil {
				wf.Whens = append(wf.Whens, when)
			}
		case "reduce":
			var reduce *Reduce
			if reduce, err = newReduceFromBlock(block); err == nil {
				wf.Reduces = append(wf.Reduces, reduce)
			}
		case "output":
			var output *Output
			if output, err = newOutputFromBlock(block); err == nil {
				wf.Outputs = append(wf.Outputs, output)
			}
		}
		if err != nil {
			return fmt.Errorf("%s: %w", filePath, err)
		}
	}
	return nil
}

// validate enforces workspace-wide name uniqueness per block kind.
func (wf *Workflow) validate() error {
	check := func(kind string, names []string) error {
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			if _, dup := seen[name]; dup {
				return fmt.Errorf("duplicate %s '%s'", kind, name)
			}
			seen[name] = struct{}{}
		}
		return nil
	}

	var inputs, tasks, scatters, whens, reduces, outputs []string
	for _, b := range wf.Inputs {
		inputs = append(inputs, b.Name)
	}
	for _, b := range wf.Tasks {
		tasks = append(tasks, b.Name)
	}
	for _, b := range wf.Scatters {
		scatters = append(scatters, b.Name)
	}
	for _, b := range wf.Whens {
		whens = append(whens, b.Name)
	}
	for _, b := range wf.Reduces {
		reduces = append(reduces, b.Name)
	}
	for _, b := range wf.Outputs {
		outputs = append(outputs, b.Name)
	}

	for kind, names := range map[string][]string{
		"input": inputs, "task": tasks, "scatter": scatters,
		"when": whens, "reduce": reduces, "output": outputs,
	} {
		if err := check(kind, names); err != nil {
			return err
		}
	}
	return nil
}
