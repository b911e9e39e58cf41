package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/inbox-triage/internal/adapters/rawmail"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/di"
	"github.com/mikey/inbox-triage/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type parsedEmail struct {
	msg   *core.RawMessage
	input core.EmailInput
	from  string
}

// readEmail parses a raw message and renders the text the classifier sees
func readEmail(args []string, text *utils.TextProcessor) (*parsedEmail, error) {
	in, err := openInput(args)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	msg, err := rawmail.Parse(in)
	if err != nil {
		return nil, err
	}

	return &parsedEmail{
		msg:   msg,
		input: core.ClassifierInput(msg, core.Extract(msg), text),
		from:  msg.Header("From"),
	}, nil
}

func newClassifyCmd(flags *di.CLIFlags) *cobra.Command {
	var skipPrefilter bool

	cmd := &cobra.Command{
		Use:   "classify [file.eml]",
		Short: "Classify a raw email with the configured LLM provider",
		Long: `Parse an RFC 5322 message from a file (or stdin), extract its body and
classify it with the configured LLM provider. The result is printed as JSON.

Messages rejected by the keyword prefilter are not sent to the LLM unless
--skip-prefilter is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(flags, func(
				cfg *config.Config,
				logger *zap.Logger,
				text *utils.TextProcessor,
				prefilter *core.Prefilter,
				classifier *core.Classifier,
			) error {
				defer logger.Sync()

				email, err := readEmail(args, text)
				if err != nil {
					return err
				}

				if !skipPrefilter && !prefilter.Allow(email.from, email.input.Subject, email.input.Content) {
					fmt.Fprintln(cmd.OutOrStdout(), "prefilter: not a likely support request, skipping classification")
					return nil
				}

				started := time.Now()
				result, err := classifier.Classify(context.Background(), email.input, cfg.GetClassifier().FAQs)
				if err != nil {
					return fmt.Errorf("failed to classify email: %w", err)
				}
				logger.Info("Classified email",
					zap.String("message_id", email.msg.ID),
					zap.Duration("elapsed", time.Since(started)))

				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().BoolVar(&skipPrefilter, "skip-prefilter", false, "Classify even when the prefilter rejects the message")
	return cmd
}

func newPrefilterCmd(flags *di.CLIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prefilter [file.eml]",
		Short: "Report whether the keyword prefilter passes a raw email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(flags, func(text *utils.TextProcessor, prefilter *core.Prefilter) error {
				email, err := readEmail(args, text)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"from":    email.from,
					"subject": email.input.Subject,
					"allowed": prefilter.Allow(email.from, email.input.Subject, email.input.Content),
				})
			})
		},
	}
}
