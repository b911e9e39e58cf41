package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikey/inbox-triage/internal/di"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

func newRootCmd() *cobra.Command {
	flags := &di.CLIFlags{}

	root := &cobra.Command{
		Use:   "triage-cli",
		Short: "Operator tools for the inbox triage pipeline",
		Long: `triage-cli runs single steps of the inbox triage pipeline by hand.

It can classify a raw .eml file with the configured LLM provider, check
whether the keyword prefilter would pass a message, and inspect or
invalidate cached analyses.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	pf.StringVar(&flags.Provider, "provider", "", "LLM provider (openai, gemini, bedrock)")
	pf.StringVar(&flags.ModelName, "model", "", "Model name or Bedrock model id")
	pf.StringVar(&flags.APIKey, "api-key", "", "API key for the LLM provider")
	pf.IntVar(&flags.MaxTokens, "max-tokens", 0, "Maximum tokens for the LLM response")
	pf.IntVar(&flags.MaxBodySize, "max-body-size", 0, "Maximum email body size sent to the LLM")
	pf.StringSliceVar(&flags.FAQs, "faq", nil, "FAQ question to match against (repeatable)")
	pf.StringSliceVar(&flags.Whitelist, "whitelist", nil, "Whitelisted sender domains")
	pf.StringVar(&flags.CacheType, "cache", "", "Cache backend (memory, sqlite, mysql, valkey, firestore)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	root.AddCommand(newClassifyCmd(flags))
	root.AddCommand(newPrefilterCmd(flags))
	root.AddCommand(newCacheCmd(flags))
	return root
}

// invoke builds the CLI container and runs fn with its dependencies
func invoke(flags *di.CLIFlags, fn interface{}) error {
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	if err := container.Invoke(fn); err != nil {
		return dig.RootCause(err)
	}
	return nil
}

// openInput opens the named file, or stdin when no file is given
func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return f, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
