package cmd

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/suggest"
)

//go:embed help/*.md
var helpFS embed.FS

// helpTopics returns the embedded topic names, sorted.
func helpTopics() []string {
	entries, err := helpFS.ReadDir("help")
	if err != nil {
		return nil
	}
	var topics []string
	for _, e := range entries {
		topics = append(topics, strings.TrimSuffix(e.Name(), ".md"))
	}
	slices.Sort(topics)
	return topics
}

var helpTopicsCmd = &cobra.Command{
	Use:     "help-topics [topic]",
	Aliases: []string{"guide"},
	Short:   "Read the longer guides",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return helpTopics(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			var sb strings.Builder
			sb.WriteString("# Help topics\n\n")
			for _, t := range helpTopics() {
				fmt.Fprintf(&sb, "- `%s`\n", t)
			}
			sb.WriteString("\nRun `shelf help-topics <topic>` to read one.\n")
			return printHelp(cmd, sb.String())
		}

		topic := args[0]
		data, err := helpFS.ReadFile(path.Join("help", topic+".md"))
		if err != nil {
			if hint := suggest.DidYouMean(suggest.Closest(topic, helpTopics())); hint != "" {
				return fmt.Errorf("unknown help topic %q%s", topic, hint)
			}
			return fmt.Errorf("unknown help topic %q (have %s)", topic, strings.Join(helpTopics(), ", "))
		}
		return printHelp(cmd, string(data))
	},
}

func printHelp(cmd *cobra.Command, text string) error {
	rendered, err := output.RenderHelp(text)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return nil
}

func init() {
	rootCmd.AddCommand(helpTopicsCmd)
}
