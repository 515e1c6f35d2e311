package cmd

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/filter"
	"github.com/s0up4200/mailmanctl/mailman"
)

var (
	memberRole   string
	memberFilter string
	memberPreset string
	memberPage   int

	findSubscriber string
	findRole       string
	findList       string

	subscribeOpts mailman.SubscribeOptions
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage list memberships",
}

var membersListCmd = &cobra.Command{
	Use:   "list <fqdn-listname>",
	Short: "List the members of a mailing list",
	Long: `List the members of a mailing list.

Members can be selected with a filter over address, email, display_name,
delivery_mode, list_id, member_id, moderation_action, role,
subscription_mode and user:

  mailmanctl members list test@example.com --filter 'email~:"@gmail\.com$"'`,
	Args: cobra.ExactArgs(1),
	RunE: runMembersList,
}

var membersSubscribeCmd = &cobra.Command{
	Use:   "subscribe <fqdn-listname> <address>...",
	Short: "Subscribe addresses to a mailing list",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMembersSubscribe,
}

var membersUnsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <fqdn-listname> <address>...",
	Short: "Unsubscribe addresses from a mailing list",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMembersUnsubscribe,
}

var membersFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Find memberships across all lists",
	Args:  cobra.NoArgs,
	RunE:  runMembersFind,
}

func init() {
	membersListCmd.Flags().StringVar(&memberRole, "role", mailman.RoleMember, "roster to list: member or nonmember")
	membersListCmd.Flags().IntVar(&memberPage, "page", 0, "fetch a single page instead of all members")
	addFilterFlags(membersListCmd, &memberFilter, &memberPreset)

	membersSubscribeCmd.Flags().StringVar(&subscribeOpts.DisplayName, "display-name", "", "display name of the subscriber")
	membersSubscribeCmd.Flags().BoolVar(&subscribeOpts.PreVerified, "pre-verified", false, "skip address verification")
	membersSubscribeCmd.Flags().BoolVar(&subscribeOpts.PreConfirmed, "pre-confirmed", false, "skip subscriber confirmation")
	membersSubscribeCmd.Flags().BoolVar(&subscribeOpts.PreApproved, "pre-approved", false, "skip moderator approval")

	membersFindCmd.Flags().StringVar(&findSubscriber, "subscriber", "", "subscriber address")
	membersFindCmd.Flags().StringVar(&findRole, "role", "", "member role")
	membersFindCmd.Flags().StringVar(&findList, "list-id", "", "list id, e.g. test.example.com")

	membersCmd.AddCommand(membersListCmd, membersSubscribeCmd, membersUnsubscribeCmd, membersFindCmd)
}

func memberItem(info mailman.MemberInfo) treeItem {
	item := treeItem{
		Title:   info.Email,
		Details: []string{fmt.Sprintf("Role: %s | List: %s", info.Role, info.ListID)},
	}
	if info.DisplayName != "" {
		item.Details = append(item.Details, "Name: "+info.DisplayName)
	}
	if info.ModerationAction != "" {
		item.Details = append(item.Details, "Moderation: "+info.ModerationAction)
	}
	return item
}

func memberInfos(ctx context.Context, members []*mailman.Member) ([]mailman.MemberInfo, error) {
	infos := make([]mailman.MemberInfo, 0, len(members))
	for _, m := range members {
		info, err := m.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func renderMembers(cmd *cobra.Command, infos []mailman.MemberInfo, position string) error {
	return render(cmd, infos, func(w io.Writer) {
		items := make([]treeItem, len(infos))
		for i, info := range infos {
			items[i] = memberItem(info)
		}
		fmt.Fprint(w, formatTree("member", items))
		if position != "" {
			fmt.Fprintln(w, position)
		}
	})
}

func runMembersList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	f, err := resolveFilter(memberFilter, memberPreset)
	if err != nil {
		return err
	}

	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}

	var (
		members  []*mailman.Member
		position string
	)
	switch {
	case memberRole == mailman.RoleNonmember:
		members, err = list.Nonmembers(ctx)
	case memberRole != mailman.RoleMember:
		members, err = list.FindMembers(ctx, "", memberRole)
	case memberPage > 0:
		page, perr := list.MemberPage(ctx, cfg.Mailman.PageSize, memberPage)
		if perr != nil {
			return perr
		}
		members, position, err = pageEntries(ctx, page)
	default:
		members, err = list.Members(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list members of %s: %w", args[0], err)
	}

	infos, err := memberInfos(ctx, members)
	if err != nil {
		return err
	}
	if f != nil {
		logger.Info().Str("filter", f.Expression()).Msg("Filtering members")
		infos, err = filter.Select(ctx, filters.Evaluator(), f, infos)
		if err != nil {
			return err
		}
	}

	return renderMembers(cmd, infos, position)
}

func runMembersSubscribe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}

	var pending atomic.Int32
	result, err := applyBatch(ctx, "subscribe", args[1:], func(ctx context.Context, address string) error {
		res, err := list.Subscribe(ctx, address, subscribeOpts)
		if err != nil {
			return err
		}
		if res.IsPending() {
			pending.Add(1)
			logger.Info().Str("address", address).Interface("token", res.Pending["token"]).Msg("Subscription pending")
		}
		return nil
	})

	printResult(cmd, "Subscribed %d of %d address(es) to %s (%d pending)",
		len(result.Succeeded), result.Requested, args[0], pending.Load())
	return err
}

func runMembersUnsubscribe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}

	if !isDryRun() && !confirm(cmd, fmt.Sprintf("Unsubscribe %d address(es) from %s?", len(args)-1, args[0])) {
		logger.Info().Msg("Unsubscribe cancelled by user")
		return nil
	}

	result, err := applyBatch(ctx, "unsubscribe", args[1:], func(ctx context.Context, address string) error {
		return list.Unsubscribe(ctx, address)
	})

	printResult(cmd, "Unsubscribed %d of %d address(es) from %s", len(result.Succeeded), result.Requested, args[0])
	return err
}

func runMembersFind(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	members, err := client.FindMembers(ctx, mailman.FindOptions{
		Subscriber: findSubscriber,
		Role:       findRole,
		ListID:     findList,
	})
	if err != nil {
		return fmt.Errorf("failed to find members: %w", err)
	}

	infos, err := memberInfos(ctx, members)
	if err != nil {
		return err
	}
	return renderMembers(cmd, infos, "")
}
