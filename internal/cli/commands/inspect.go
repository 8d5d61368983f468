package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/dataset"
	"github.com/leapstack-labs/leapsort/internal/loader"
	"github.com/leapstack-labs/leapsort/internal/synth"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	Mode     string
	Datasets []string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the label distribution a build would produce",
		Long: `Read the metadata tables and report rows, dropped rows, labels and
filename collisions without writing anything.

In dummy mode the distribution is computed from the configured label weights.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Inspect every configured dataset
  leapsort inspect --mode real

  # Inspect one dataset as JSON
  leapsort inspect --mode real --dataset dataset_valid --output json

  # Preview the synthetic split
  leapsort inspect --mode dummy`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Run mode: dummy|test|real|normal (default from config)")
	cmd.Flags().StringSliceVarP(&opts.Datasets, "dataset", "d", nil, "Datasets to inspect in real mode (default: all)")

	return cmd
}

// DatasetInfo describes one dataset as a build would see it.
type DatasetInfo struct {
	Name       string       `json:"name"`
	Source     string       `json:"source"`
	Root       string       `json:"root"`
	Rows       int          `json:"rows"`
	Dropped    int          `json:"dropped"`
	Collisions int          `json:"collisions"`
	Labels     []LabelCount `json:"labels"`
}

// InspectOutput is the JSON output for the inspect command.
type InspectOutput struct {
	Mode     string        `json:"mode"`
	Datasets []DatasetInfo `json:"datasets"`
}

func runInspect(cmd *cobra.Command, opts *InspectOptions) error {
	cctx := NewCommandContextWithoutStore(cmd)
	cfg := cctx.Cfg

	modeName := cfg.Mode
	if cmd.Flags().Changed("mode") {
		modeName = opts.Mode
	}
	mode, err := dataset.ParseMode(modeName)
	if err != nil {
		return err
	}
	names, err := selectDatasets(cfg, mode, opts.Datasets)
	if err != nil {
		return err
	}

	out := InspectOutput{Mode: string(mode)}

	if mode == dataset.ModeDummy {
		info := DatasetInfo{
			Name:   cfg.Dummy.Name,
			Source: cfg.Dummy.InputDir,
			Root:   cfg.DatasetRoot(cfg.Dummy.Name),
		}
		for _, rg := range synth.Plan(cfg.Dummy.Synth()) {
			info.Rows += rg.End - rg.Start
			info.Labels = append(info.Labels, LabelCount{Label: rg.Label, Files: rg.End - rg.Start})
		}
		out.Datasets = append(out.Datasets, info)
	} else {
		if err := cfg.ValidateTables(names...); err != nil {
			return err
		}
		ld := loader.New(cctx.Logger)
		copier := &dataset.Copier{OnCollision: dataset.CollisionOverwrite, Logger: cctx.Logger}
		for _, name := range names {
			ds, _ := cfg.FindDataset(name)
			res, err := ld.Load(cmd.Context(), ds.Source())
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			root := cfg.DatasetRoot(name)
			_, collisions, err := copier.Plan(res.Table, root)
			if err != nil {
				return err
			}
			out.Datasets = append(out.Datasets, DatasetInfo{
				Name:       name,
				Source:     ds.Table,
				Root:       root,
				Rows:       res.Table.Len(),
				Dropped:    res.Dropped,
				Collisions: collisions,
				Labels:     labelCounts(res.Table.Counts()),
			})
		}
	}

	r := cctx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderInspect(r, &out)
	return nil
}

func renderInspect(r *output.Renderer, out *InspectOutput) {
	r.Header(1, fmt.Sprintf("Datasets (%s mode)", out.Mode))

	for _, info := range out.Datasets {
		r.Println("")
		r.Header(2, info.Name)
		r.KeyValue("Source", info.Source)
		r.KeyValue("Output", info.Root)
		r.KeyValue("Rows", fmt.Sprint(info.Rows))
		if info.Dropped > 0 {
			r.KeyValue("Dropped (no label)", fmt.Sprint(info.Dropped))
		}
		if info.Collisions > 0 {
			r.Warning(fmt.Sprintf("%s: %d destination(s) claimed by more than one source file", info.Name, info.Collisions))
		}
		r.Println("")

		rows := make([][]any, 0, len(info.Labels))
		for _, lc := range info.Labels {
			rows = append(rows, []any{lc.Label, lc.Files})
		}
		r.Table([]string{"Label", "Files"}, rows, "Total", info.Rows)
	}
}
