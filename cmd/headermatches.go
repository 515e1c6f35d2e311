package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/mailman"
)

var headerMatchRule struct {
	header  string
	pattern string
	action  string
	tag     string
}

var headerMatchesCmd = &cobra.Command{
	Use:     "header-matches",
	Aliases: []string{"hm"},
	Short:   "Manage a list's header-match rules",
}

var headerMatchesListCmd = &cobra.Command{
	Use:   "list <fqdn-listname>",
	Short: "List header-match rules in evaluation order",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeaderMatchesList,
}

var headerMatchesAddCmd = &cobra.Command{
	Use:   "add <fqdn-listname>",
	Short: "Append a header-match rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeaderMatchesAdd,
}

var headerMatchesClearCmd = &cobra.Command{
	Use:   "clear <fqdn-listname>",
	Short: "Delete every header-match rule of a list",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeaderMatchesClear,
}

func init() {
	headerMatchesAddCmd.Flags().StringVar(&headerMatchRule.header, "header", "", "header name, e.g. x-spam-score")
	headerMatchesAddCmd.Flags().StringVar(&headerMatchRule.pattern, "pattern", "", "regular expression matched against the header")
	headerMatchesAddCmd.Flags().StringVar(&headerMatchRule.action, "action", "", "moderation action; the list default when empty")
	headerMatchesAddCmd.Flags().StringVar(&headerMatchRule.tag, "tag", "", "tag for the rule")
	_ = headerMatchesAddCmd.MarkFlagRequired("header")
	_ = headerMatchesAddCmd.MarkFlagRequired("pattern")

	headerMatchesCmd.AddCommand(headerMatchesListCmd, headerMatchesAddCmd, headerMatchesClearCmd)
}

func getHeaderMatches(cmd *cobra.Command, fqdn string) (*mailman.HeaderMatches, error) {
	list, err := getList(cmd, fqdn)
	if err != nil {
		return nil, err
	}
	return list.HeaderMatches(commandContext(cmd))
}

func runHeaderMatchesList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	matches, err := getHeaderMatches(cmd, args[0])
	if err != nil {
		return err
	}
	entries, err := matches.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list header matches: %w", err)
	}

	infos := make([]mailman.HeaderMatchInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	return render(cmd, infos, func(w io.Writer) {
		items := make([]treeItem, len(infos))
		for i, info := range infos {
			action := info.Action
			if action == "" {
				action = "list default"
			}
			items[i] = treeItem{
				Title:   fmt.Sprintf("%d. %s ~ %s", info.Position, info.Header, info.Pattern),
				Details: []string{"Action: " + action},
			}
			if info.Tag != "" {
				items[i].Details = append(items[i].Details, "Tag: "+info.Tag)
			}
		}
		fmt.Fprint(w, formatTree("header match", items))
	})
}

func runHeaderMatchesAdd(cmd *cobra.Command, args []string) error {
	rule := mailman.HeaderMatchRule{
		Header:  headerMatchRule.header,
		Pattern: headerMatchRule.pattern,
		Tag:     headerMatchRule.tag,
	}
	if headerMatchRule.action != "" {
		action, ok := mailman.ParseAction(headerMatchRule.action)
		if !ok {
			logger.Warn().Str("action", headerMatchRule.action).Msg("Unknown action, sending it as given")
		}
		rule.Action = action
	}

	if isDryRun() {
		printResult(cmd, "Would add header match %s ~ %s to %s", rule.Header, rule.Pattern, args[0])
		return nil
	}

	matches, err := getHeaderMatches(cmd, args[0])
	if err != nil {
		return err
	}
	match, err := matches.Add(commandContext(cmd), rule)
	if err != nil {
		return err
	}
	logger.Info().Str("url", match.URL()).Msg("Header match added")
	printResult(cmd, "Added header match %s ~ %s to %s", rule.Header, rule.Pattern, args[0])
	return nil
}

func runHeaderMatchesClear(cmd *cobra.Command, args []string) error {
	if isDryRun() {
		printResult(cmd, "Would clear header matches of %s", args[0])
		return nil
	}
	if !confirm(cmd, fmt.Sprintf("Delete every header-match rule of %s?", args[0])) {
		logger.Info().Msg("Clear cancelled by user")
		return nil
	}

	matches, err := getHeaderMatches(cmd, args[0])
	if err != nil {
		return err
	}
	if err := matches.Clear(commandContext(cmd)); err != nil {
		return err
	}
	printResult(cmd, "Cleared header matches of %s", args[0])
	return nil
}
