package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapsort/internal/cli/config"
	"github.com/leapstack-labs/leapsort/internal/cli/output"
	"github.com/leapstack-labs/leapsort/internal/dataset"
	"github.com/leapstack-labs/leapsort/internal/loader"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project before building",
		Long: `Analyze your leapsort project for problems a build would hit.

The doctor command reads every configured metadata table without writing and
reports:
- Configuration (config file, data directory, label weights)
- Metadata tables (present, parseable, path and label columns)
- Source files (every referenced file exists)
- Collisions (files that would land on the same destination)
- Health score (0-100) and recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  leapsort doctor

  # Output as JSON
  leapsort doctor --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	ConfigFile string `json:"config_file,omitempty"`
	DataDir    string `json:"data_dir"`
	Mode       string `json:"mode"`
	Datasets   int    `json:"datasets"`
	Rows       int    `json:"rows"`
	Labels     int    `json:"labels"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command) error {
	cctx := NewCommandContextWithoutStore(cmd)

	out := diagnose(cmd.Context(), cctx.Cfg, config.GetConfigFileUsed(), cctx.Logger)

	r := cctx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// diagnose runs every check against cfg. It reads tables and stats files but
// never writes.
func diagnose(ctx context.Context, cfg *config.Config, configFile string, logger *slog.Logger) *DoctorOutput {
	summary := ProjectSummary{
		ConfigFile: configFile,
		DataDir:    cfg.DataDir,
		Mode:       cfg.Mode,
		Datasets:   len(cfg.Datasets),
	}

	var checks []HealthCheck
	add := func(c HealthCheck) {
		c.IssueCount = len(c.Details)
		if c.IssueCount == 0 {
			c.Status = statusPass
		}
		checks = append(checks, c)
	}

	// Configuration
	configCheck := HealthCheck{ID: "CF01", Name: "config file found", Group: "configuration", Status: statusWarn}
	if configFile == "" {
		configCheck.Details = []string{"no leapsort.yaml found; using defaults"}
	}
	add(configCheck)

	dataCheck := HealthCheck{ID: "CF02", Name: "data directory exists", Group: "configuration", Status: statusWarn}
	if info, err := os.Stat(cfg.DataDir); err != nil || !info.IsDir() {
		dataCheck.Details = []string{cfg.DataDir + " does not exist; it is created on the first build"}
	}
	add(dataCheck)

	weightCheck := HealthCheck{ID: "CF03", Name: "dummy label weights", Group: "configuration", Status: statusError}
	if err := cfg.Dummy.Synth().Validate(); err != nil {
		weightCheck.Details = []string{err.Error()}
	}
	add(weightCheck)

	// Metadata tables
	policy, _ := dataset.ParseCollisionPolicy(cfg.OnCollision)
	strict := &dataset.Copier{OnCollision: dataset.CollisionError}
	ld := loader.New(logger)

	type loadedTable struct {
		name string
		res  *loader.Result
	}
	var loaded []loadedTable
	labels := make(map[string]bool)

	for _, ds := range cfg.Datasets {
		check := HealthCheck{ID: "MT01", Name: ds.Name + ": table readable", Group: "metadata tables", Status: statusError}
		res, err := ld.Load(ctx, ds.Source())
		switch {
		case errors.Is(err, dataset.ErrInputMissing):
			check.Details = []string{"missing: " + ds.Table}
		case err != nil:
			check.Details = []string{err.Error()}
		default:
			loaded = append(loaded, loadedTable{name: ds.Name, res: res})
			summary.Rows += res.Table.Len()
			for _, l := range res.Table.Labels() {
				labels[l] = true
			}
		}
		add(check)

		if res != nil {
			dropped := HealthCheck{ID: "MT02", Name: ds.Name + ": every row labelled", Group: "metadata tables", Status: statusWarn}
			if res.Dropped > 0 {
				dropped.Details = []string{fmt.Sprintf("%d row(s) without a label will be skipped", res.Dropped)}
			}
			add(dropped)
		}
	}
	summary.Labels = len(labels)

	// Source files
	for _, lt := range loaded {
		check := HealthCheck{ID: "SF01", Name: lt.name + ": source files exist", Group: "source files", Status: statusError}
		for _, row := range lt.res.Table.Rows {
			if info, err := os.Stat(row.Path); err != nil || info.IsDir() {
				check.Details = append(check.Details, "missing: "+row.Path)
			}
		}
		add(check)
	}

	// Collisions
	for _, lt := range loaded {
		status := statusWarn
		if policy == dataset.CollisionError {
			status = statusError
		}
		check := HealthCheck{ID: "CL01", Name: lt.name + ": unique destinations", Group: "collisions", Status: status}
		_, _, err := strict.Plan(lt.res.Table, cfg.DatasetRoot(lt.name))
		var collisions *dataset.CollisionsError
		switch {
		case errors.As(err, &collisions):
			for _, c := range collisions.Collisions {
				check.Details = append(check.Details, fmt.Sprintf("%s <- %s", c.Dest, strings.Join(c.Sources, ", ")))
			}
		case err != nil:
			check.Details = []string{err.Error()}
		}
		add(check)
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Rows),
		Recommendations: generateRecommendations(checks),
		IssueCount:      countIssues(checks),
	}
}

func countIssues(checks []HealthCheck) int {
	n := 0
	for _, c := range checks {
		n += c.IssueCount
	}
	return n
}

// calculateHealthScore computes a health score from 0-100.
// Errors cost twice as much as warnings; large tables soften each issue.
func calculateHealthScore(checks []HealthCheck, rowCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if rowCount > 100 {
		basePenalty = 3.0
	}
	if rowCount > 1000 {
		basePenalty = 2.0
	}
	if rowCount > 10000 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	// Clamp to 0-100
	score = max(0, min(score, 100))
	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Run `leapsort init` to write a leapsort.yaml you can edit"
	case "CF02":
		return "Point data_dir (or --data-dir) at the directory holding your tables"
	case "CF03":
		return "Make dummy label weights positive and sum to 1"
	case "MT01":
		return "Fix datasets[].table, delimiter and columns so the table has path and label columns"
	case "MT02":
		return "Fill in the missing labels or accept that those rows are skipped"
	case "SF01":
		return "Restore missing source files or set datasets[].base_dir to where they live"
	case "CL01":
		return "Rename clashing files or set on_collision to warn or overwrite"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("leapsort Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Project Summary
	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Mode: %s | Datasets: %d | Rows: %d | Labels: %d\n", out.Summary.Mode, out.Summary.Datasets, out.Summary.Rows, out.Summary.Labels)
	r.Printf("   Data dir: %s\n", out.Summary.DataDir)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# leapsort Project Health Report")
	r.Println("")

	// Project Summary
	r.Println("## Project Summary")
	r.Println("")
	if out.Summary.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.Summary.ConfigFile)
	}
	r.Printf("- **Data dir**: %s\n", out.Summary.DataDir)
	r.Printf("- **Mode**: %s\n", out.Summary.Mode)
	r.Printf("- **Datasets**: %d\n", out.Summary.Datasets)
	r.Printf("- **Rows**: %d\n", out.Summary.Rows)
	r.Printf("- **Labels**: %d\n", out.Summary.Labels)
	r.Println("")

	// Health Checks
	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case statusWarn:
			status = "WARN"
		case statusError:
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s: %s", status, check.ID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	// Health Score
	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
