package cmd

import (
	"fmt"
	"os"

	"github.com/cottand/typeflow/frontend/signature"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var SignatureCmd = &cobra.Command{
	Use:          "signature name...",
	Short:        "Show the signature of built-in callables at the configured version",
	RunE:         runSignature,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var (
	signatureVersion    *string
	signatureHistory    *bool
	signatureConfigPath *string
)

func init() {
	signatureVersion = SignatureCmd.Flags().StringP("version", "v", "", "target version (default: from the configuration, else the latest)")
	signatureHistory = SignatureCmd.Flags().Bool("history", false, "show the signature at every known version")
	signatureConfigPath = SignatureCmd.Flags().StringP("config", "c", "", "configuration file (default: typeflow.yaml in the current folder)")
}

func runSignature(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(wd, *signatureConfigPath)
	if err != nil {
		return err
	}
	registry, err := signature.Load(cfg.SignatureBase, cfg.SignatureDeltas)
	if err != nil {
		return err
	}

	version := *signatureVersion
	if version == "" {
		version = cfg.Version
	}
	versions := registry.Versions()
	if version == "" && len(versions) > 0 {
		version = versions[len(versions)-1]
	}
	snap, err := registry.At(version)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}

	out := cmd.OutOrStdout()
	name := color.New(color.Bold).SprintFunc()
	missing := 0
	for _, fn := range args {
		if *signatureHistory {
			for _, v := range versions {
				if shape, ok := registry.Resolve(fn, v); ok {
					_, _ = fmt.Fprintf(out, "%-5s %s%s\n", v, name(fn), shape)
				} else {
					_, _ = fmt.Fprintf(out, "%-5s %s %s\n", v, name(fn), color.RedString("(absent)"))
				}
			}
			continue
		}
		shape, ok := snap.Resolve(fn)
		if !ok {
			missing++
			hint := ""
			if s, ok := snap.Suggest(fn); ok {
				hint = fmt.Sprintf(", did you mean %s?", s)
			}
			_, _ = fmt.Fprintf(out, "%s %s does not exist at %s%s\n", color.RedString("unknown"), fn, signature.DisplayVersion(snap.Version), hint)
			continue
		}
		pure := ""
		if snap.IsPure(fn) {
			pure = color.GreenString(" pure")
		}
		_, _ = fmt.Fprintf(out, "%s%s%s\n", name(fn), shape, pure)
	}
	if missing > 0 {
		return fmt.Errorf("%d unknown callable(s)", missing)
	}
	return nil
}
