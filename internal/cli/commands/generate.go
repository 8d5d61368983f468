package commands

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/loader"
	"github.com/leapstack-labs/leapsort/internal/synth"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	Table     string
	Delimiter string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the synthetic input tree",
		Long: `Write random files under the dummy input directory and label them by weight.

The input directory is deleted first. Nothing is copied into a dataset; use
--table to save the generated labels as a metadata table that real mode can read.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Generate the default 5 x 500 files
  leapsort generate

  # Save the labels for a real-mode build
  leapsort generate --table data/dummy.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "Write the generated path,label table to this file")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", ",", "Field delimiter of the written table")

	return cmd
}

// GenerateOutput is the JSON output for the generate command.
type GenerateOutput struct {
	InputDir string       `json:"input_dir"`
	Folders  int          `json:"folders"`
	Files    int          `json:"files"`
	Table    string       `json:"table,omitempty"`
	Labels   []LabelCount `json:"labels"`
}

// LabelCount is the number of rows carrying one label.
type LabelCount struct {
	Label string `json:"label"`
	Files int    `json:"files"`
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	cctx := NewCommandContextWithoutStore(cmd)
	cfg := cctx.Cfg

	sc := cfg.Dummy.Synth()
	sc.Logger = cctx.Logger
	res, err := synth.Generate(sc)
	if err != nil {
		return err
	}

	out := GenerateOutput{
		InputDir: cfg.Dummy.InputDir,
		Folders:  len(res.Folders),
		Files:    res.Files,
		Labels:   labelCounts(res.Table.Counts()),
	}

	if opts.Table != "" {
		tablePath, err := filepath.Abs(opts.Table)
		if err != nil {
			return err
		}
		if err := loader.WriteTable(tablePath, res.Table, opts.Delimiter); err != nil {
			return err
		}
		out.Table = tablePath
	}

	r := cctx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	default:
		renderGenerate(r, &out)
		return nil
	}
}

// labelCounts flattens a count map into rows sorted by label.
func labelCounts(counts map[string]int) []LabelCount {
	rows := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		rows = append(rows, LabelCount{Label: label, Files: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}

func renderGenerate(r *output.Renderer, out *GenerateOutput) {
	r.Header(1, "Synthetic input")
	r.Println("")
	r.KeyValue("Directory", out.InputDir)
	r.KeyValue("Folders", fmt.Sprint(out.Folders))
	r.KeyValue("Files", fmt.Sprint(out.Files))
	r.Println("")

	rows := make([][]any, 0, len(out.Labels))
	for _, lc := range out.Labels {
		rows = append(rows, []any{lc.Label, lc.Files})
	}
	r.Table([]string{"Label", "Files"}, rows, "Total", out.Files)

	if out.Table != "" {
		r.Println("")
		r.Success("Wrote metadata table " + out.Table)
	}
}
