package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/mailman"
)

var banList string

var bansCmd = &cobra.Command{
	Use:   "bans",
	Short: "Manage banned addresses, site-wide or per list",
}

var bansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List banned addresses",
	Args:  cobra.NoArgs,
	RunE:  runBansList,
}

var bansAddCmd = &cobra.Command{
	Use:   "add <email-or-pattern>...",
	Short: "Ban addresses",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBansAdd,
}

var bansRemoveCmd = &cobra.Command{
	Use:   "remove <email-or-pattern>...",
	Short: "Lift bans",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBansRemove,
}

func init() {
	bansCmd.PersistentFlags().StringVar(&banList, "list", "", "list fqdn; site-wide bans when empty")
	bansCmd.AddCommand(bansListCmd, bansAddCmd, bansRemoveCmd)
}

func getBans(cmd *cobra.Command) (*mailman.Bans, error) {
	if banList == "" {
		return client.Bans(), nil
	}
	list, err := getList(cmd, banList)
	if err != nil {
		return nil, err
	}
	return list.Bans(commandContext(cmd))
}

func runBansList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	bans, err := getBans(cmd)
	if err != nil {
		return err
	}
	entries, err := bans.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bans: %w", err)
	}

	infos := make([]mailman.BanInfo, 0, len(entries))
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
			items[i] = treeItem{Title: info.Email}
			if info.ListID != "" {
				items[i].Details = []string{"List: " + info.ListID}
			}
		}
		fmt.Fprint(w, formatTree("ban", items))
	})
}

func runBansAdd(cmd *cobra.Command, args []string) error {
	bans, err := getBans(cmd)
	if err != nil {
		return err
	}
	result, err := applyBatch(commandContext(cmd), "ban", args, func(ctx context.Context, email string) error {
		_, err := bans.Add(ctx, email)
		return err
	})
	printResult(cmd, "Banned %d of %d address(es)", len(result.Succeeded), result.Requested)
	return err
}

func runBansRemove(cmd *cobra.Command, args []string) error {
	bans, err := getBans(cmd)
	if err != nil {
		return err
	}
	result, err := applyBatch(commandContext(cmd), "unban", args, func(ctx context.Context, email string) error {
		return bans.Remove(ctx, email)
	})
	printResult(cmd, "Unbanned %d of %d address(es)", len(result.Succeeded), result.Requested)
	return err
}
