package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cottand/typeflow/frontend/issue"
	"github.com/cottand/typeflow/frontend/signature"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var ConfigCmd = &cobra.Command{
	Use:          "config [./folder]",
	Short:        "Validate the configuration of a project and print its effective settings",
	RunE:         runConfig,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
}

var configPath *string

func init() {
	configPath = ConfigCmd.Flags().StringP("config", "c", "", "configuration file (default: typeflow.yaml in the project folder)")
}

// effective is what `typeflow config` prints.
type effective struct {
	Source                   string            `yaml:"source,omitempty"`
	Root                     string            `yaml:"root"`
	PHPVersion               string            `yaml:"phpVersion"`
	MemoizeMethodCallResults bool              `yaml:"memoizeMethodCallResults"`
	RequireVoidReturnType    bool              `yaml:"requireVoidReturnType"`
	Workers                  int               `yaml:"workers"`
	Signatures               []string          `yaml:"signatures,omitempty"`
	IssueHandlers            map[string]string `yaml:"issueHandlers,omitempty"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("could not get absolute path of target: %w", err)
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("could not stat target: %w", err)
	}
	cfg, err := loadConfig(root, *configPath)
	if err != nil {
		return err
	}
	// signature files are configuration too: fail on them here rather than
	// at the first analysis
	registry, err := signature.Load(cfg.SignatureBase, cfg.SignatureDeltas)
	if err != nil {
		return err
	}

	e := effective{
		Source:                   cfg.Source,
		Root:                     cfg.Root,
		PHPVersion:               signature.DisplayVersion(cfg.Version),
		MemoizeMethodCallResults: cfg.Memoize,
		RequireVoidReturnType:    cfg.RequireVoidReturnType,
		Workers:                  cfg.Workers,
		IssueHandlers:            map[string]string{},
	}
	if cfg.Version == "" {
		versions := registry.Versions()
		e.PHPVersion = "latest"
		if len(versions) > 0 {
			e.PHPVersion = versions[len(versions)-1]
		}
	}
	if cfg.SignatureBase != "" {
		e.Signatures = append(e.Signatures, cfg.SignatureBase)
	}
	e.Signatures = append(e.Signatures, cfg.SignatureDeltas...)
	for _, k := range cfg.Kinds() {
		// the level for an issue with no file or symbol, ie before overrides
		e.IssueHandlers[k.String()] = cfg.Resolve(k, "", issue.Symbol{}).String()
	}

	out, err := yaml.Marshal(e)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
