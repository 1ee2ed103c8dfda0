package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "history",
		Aliases: []string{"logs"},
		Short:   "Show the conversation history of the session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			history, err := app.History(cmd.Context(), c.flags.Session)
			if err != nil {
				return err
			}
			if c.flags.JSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"session": c.flags.Session,
					"history": history,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), history)
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Aliases: []string{"reset"},
		Short:   "Forget the conversation history of the session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Clear(cmd.Context(), c.flags.Session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.styles.success("Conversation history cleared."))
			return nil
		},
	}
}
