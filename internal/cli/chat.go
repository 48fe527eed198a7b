package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		seed      bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the parking assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if seed {
				cfg.Store.Seed = true
			}
			ctx := cmd.Context()
			a, err := wireApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			session := a.runtime.NewSession(sessionID)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parking assistant ready (session %s). Type 'exit' to quit.\n", session.ID())

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
					break
				}
				fmt.Fprintln(out, session.Send(ctx, line))
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume a session id (a new one is generated when empty)")
	cmd.Flags().BoolVar(&seed, "seed", false, "load the demo inventory into an empty store")
	return cmd
}
