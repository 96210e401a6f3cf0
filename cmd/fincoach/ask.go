package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fincoach/internal/cli"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question",
		Long: `Ask a single question about your finances.

The question can be given as arguments or read from stdin:

  fincoach ask "How's my grocery budget?"
  echo "What did I spend on dining last month?" | fincoach ask`,
		RunE: runAsk,
	}

	cmd.Flags().BoolP("verbose", "v", false, "Show routing and validation details")
	cmd.Flags().Bool("json", false, "Print the full response as JSON")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("json")

	utterance := strings.Join(args, " ")
	if utterance == "" {
		fmt.Fprint(cmd.ErrOrStderr(), cli.FormatPrompt("Question"))
		question, err := cli.NewQuestionReader(cmd.InOrStdin()).ReadQuestion(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read question: %w", err)
		}
		utterance = question
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	resp, err := a.orch.Handle(ctx, utterance, snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatWarning(userMessage(err)))
		return nil
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	_, err = fmt.Fprint(out, cli.RenderResponse(resp, verbose))
	return err
}
