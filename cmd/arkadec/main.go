// Command arkadec is the thin CLI host binding around pkg/compiler: file
// I/O, flag parsing, and stdout printing only — no compiler logic lives
// here, per spec.md's "everything else is plumbing."
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arkade-os/arkade-script/internal/artifact"
	"github.com/arkade-os/arkade-script/internal/codegen"
	"github.com/arkade-os/arkade-script/pkg/compiler"
	"github.com/arkade-os/arkade-script/pkg/config"
	"github.com/arkade-os/arkade-script/pkg/utils"
)

var (
	logger     = logrus.New()
	configPath string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arkadec",
		Short: "Arkade Script compiler",
	}
	root.PersistentFlags().StringVar(&configPath, "config", utils.EnvOrDefault("ARKADEC_CONFIG", ""), "path to a compiler config file (yaml/json/toml)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", utils.EnvOrDefaultInt("ARKADEC_VERBOSE", 0) != 0, "enable debug-level codegen/artifact tracing")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).Warn("failed to load .env")
		}
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
			codegen.SetLogger(logger)
			artifact.SetLogger(logger)
		}
		return nil
	}

	root.AddCommand(newCompileCmd(), newVersionCmd())
	return root
}

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile an Arkade Script source file to its JSON artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out, err := compiler.CompileWithOptions(string(src), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the compiler's semantic version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), compiler.Version())
			return nil
		},
	}
}
