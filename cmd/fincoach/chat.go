package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fincoach/internal/tui"
	"github.com/Veraticus/fincoach/internal/tui/themes"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive chat. The snapshot is loaded once at startup and every
question is answered against it. Type /details to toggle the routing trail and
/quit to leave.`,
		RunE: runChat,
	}

	cmd.Flags().BoolP("verbose", "v", false, "Start with routing details shown")
	cmd.Flags().String("theme", "default", "Color theme (default, catppuccin)")
	cmd.Flags().Bool("inline", false, "Render inline instead of taking over the terminal")

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	verbose, _ := cmd.Flags().GetBool("verbose")
	theme, _ := cmd.Flags().GetString("theme")
	inline, _ := cmd.Flags().GetBool("inline")

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	return tui.Run(ctx, session{orch: a.orch, snap: snap},
		tui.WithTheme(themes.ByName(theme)),
		tui.WithVerbose(verbose),
		tui.WithAltScreen(!inline),
		tui.WithLogger(a.logger),
		tui.WithTitle(fmt.Sprintf("fincoach  data as of %s", snap.AsOf.Format("Jan 2 15:04"))),
	)
}
