package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/marcus/shelf/internal/config"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/suggest"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage shelf configuration",
	GroupID: "system",
}

// configKeys are the keys config set accepts.
var configKeys = []string{"server_url", "transport", "delete_policy"}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a config value",
	Long:      `Set one of server_url, transport (rest or rpc) or delete_policy (mark or remove).`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: configKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(configKeys, args[0]) {
			return fmt.Errorf("unknown config key %q%s", args[0], suggest.DidYouMean(suggest.Closest(args[0], configKeys)))
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		if err := config.Set(s.path, args[0], args[1]); err != nil {
			return err
		}
		if outputFormat == output.FormatText {
			output.Success(cmd.OutOrStdout(), "Set %s = %s", args[0], args[1])
			return nil
		}
		return output.Render(cmd.OutOrStdout(), outputFormat, map[string]string{args[0]: args[1]}, nil)
	},
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"get"},
	Short:   "Show the effective configuration",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		shown := *s.cfg
		shown.ServerURL = s.cfg.Server()
		shown.Transport = s.transport
		if shown.Session != "" {
			shown.Session = "(stored)"
		}
		return output.Render(cmd.OutOrStdout(), outputFormat, shown, func() string {
			return fmt.Sprintf("server_url     %s\ntransport      %s\ndelete_policy  %s\nusername       %s\nsession        %s\nfile           %s",
				shown.ServerURL, shown.Transport, shown.DeletePolicy, orNone(shown.Username), orNone(shown.Session), s.path)
		})
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configSetCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
