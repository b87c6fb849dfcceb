package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/cottand/typeflow/config"
	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/project"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var AnalyzeCmd = &cobra.Command{
	Use:          "analyze [./folder]",
	Short:        "Analyze the tree documents of a project",
	RunE:         runAnalyze,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

var (
	analyzeConfigPath *string
	showInfo          *bool
	showSignatures    *bool
	noColor           *bool
)

func init() {
	analyzeConfigPath = AnalyzeCmd.Flags().StringP("config", "c", "", "configuration file (default: "+config.FileName+" in the project folder)")
	showInfo = AnalyzeCmd.Flags().Bool("show-info", false, "also print issues of info level")
	showSignatures = AnalyzeCmd.Flags().Bool("signatures", false, "print the signatures inferred for callables without a return type")
	noColor = AnalyzeCmd.Flags().Bool("no-color", false, "disable colored output")
}

// loadConfig reads the configuration at explicit, or discovers it in root.
func loadConfig(root, explicit string) (*config.Config, error) {
	if explicit == "" {
		return config.Discover(root)
	}
	cfg, err := config.Load(explicit)
	if err != nil {
		return nil, err
	}
	// project paths stay relative to the analysed folder
	cfg.Root = root
	return cfg, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if *noColor {
		color.NoColor = true
	}
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("could not get absolute path of target: %w", err)
	}
	stat, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("could not stat target: %w", err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("target %s is not a folder", root)
	}

	cfg, err := loadConfig(root, *analyzeConfigPath)
	if err != nil {
		return err
	}
	p, err := project.Load(cmd.Context(), os.DirFS(root), cfg)
	if err != nil {
		return fmt.Errorf("could not load project: %w", err)
	}
	report, err := p.Analyze(cmd.Context())
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}

	out := cmd.OutOrStdout()
	printIssues(out, report.Issues(), *showInfo)
	if *showSignatures {
		printSignatures(out, report)
	}
	errs, infos := report.Count(issue.Error), report.Count(issue.Info)
	summary := fmt.Sprintf("%d file(s), %d error(s), %d info", len(report.Files), errs, infos)
	if errs > 0 {
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(out, summary)
		return fmt.Errorf("%d error(s) found", errs)
	}
	_, _ = color.New(color.FgGreen).Fprintln(out, summary)
	return nil
}

var (
	errorLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	infoLabel  = color.New(color.FgCyan).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
)

func printIssues(w io.Writer, issues []issue.Issue, withInfo bool) {
	for _, i := range issues {
		switch i.Severity {
		case issue.Error:
			_, _ = fmt.Fprintf(w, "%s %s\n", errorLabel("ERROR"), issue.FormatWithCode(i))
		case issue.Info:
			if withInfo {
				_, _ = fmt.Fprintf(w, "%s %s\n", infoLabel("INFO "), issue.FormatWithCode(i))
			}
		}
	}
}

func printSignatures(w io.Writer, report project.Report) {
	names := make([]string, 0, len(report.Signatures))
	for name := range report.Signatures {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%s %s%s\n", faint("inferred"), name, report.Signatures[name])
	}
}
