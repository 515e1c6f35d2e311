package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/filter"
	"github.com/s0up4200/mailmanctl/mailman"
)

var (
	heldFilter string
	heldPreset string
	heldPage   int
	heldAction string
)

var heldCmd = &cobra.Command{
	Use:   "held",
	Short: "Moderate held messages",
}

var heldListCmd = &cobra.Command{
	Use:   "list <fqdn-listname>",
	Short: "List messages held for moderation",
	Long: `List messages held for moderation.

Messages can be selected with a filter over hold_date, message_id, msg,
reason, request_id, sender, subject and type:

  mailmanctl held list test@example.com --filter 'hold_date < daysAgo(7)'`,
	Args: cobra.ExactArgs(1),
	RunE: runHeldList,
}

var heldSweepCmd = &cobra.Command{
	Use:   "sweep <fqdn-listname>",
	Short: "Apply one moderation action to every held message matching a filter",
	Long: `Apply one moderation action to every held message matching a filter.

  mailmanctl held sweep test@example.com --preset stale --action discard
  mailmanctl held sweep test@example.com -f 'sender~:"@spam\."' --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runHeldSweep,
}

func heldActionCmd(action mailman.Action) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <fqdn-listname> <request-id>...", action),
		Short: fmt.Sprintf("%s held messages", titleCase(string(action))),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args[1:]
			for _, id := range ids {
				if _, err := strconv.Atoi(id); err != nil {
					return fmt.Errorf("invalid request id %q", id)
				}
			}
			return moderateHeld(cmd, args[0], ids, action)
		},
	}
}

func init() {
	heldListCmd.Flags().IntVar(&heldPage, "page", 0, "fetch a single page instead of all held messages")
	addFilterFlags(heldListCmd, &heldFilter, &heldPreset)

	heldSweepCmd.Flags().StringVar(&heldAction, "action", string(mailman.ActionDiscard), "moderation action: accept, reject, discard or defer")
	addFilterFlags(heldSweepCmd, &heldFilter, &heldPreset)

	heldCmd.AddCommand(heldListCmd, heldSweepCmd)
	for _, action := range []mailman.Action{mailman.ActionAccept, mailman.ActionReject, mailman.ActionDiscard, mailman.ActionDefer} {
		heldCmd.AddCommand(heldActionCmd(action))
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func heldItem(info mailman.HeldMessageInfo) treeItem {
	item := treeItem{
		Title: fmt.Sprintf("#%d %s", info.RequestID, info.Subject),
		Details: []string{
			"From: " + info.Sender,
			"Reason: " + info.Reason,
		},
	}
	if t := info.HeldAt(); !t.IsZero() {
		item.Details = append(item.Details, "Held: "+t.Format("2006-01-02 15:04"))
	}
	return item
}

func heldInfos(ctx context.Context, list *mailman.MailingList) ([]mailman.HeldMessageInfo, string, error) {
	var (
		held     []*mailman.HeldMessage
		position string
		err      error
	)
	if heldPage > 0 {
		page, perr := list.HeldPage(ctx, cfg.Mailman.PageSize, heldPage)
		if perr != nil {
			return nil, "", perr
		}
		held, position, err = pageEntries(ctx, page)
	} else {
		held, err = list.Held(ctx)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get held messages: %w", err)
	}

	infos := make([]mailman.HeldMessageInfo, 0, len(held))
	for _, h := range held {
		info, err := h.Info(ctx)
		if err != nil {
			return nil, "", err
		}
		infos = append(infos, info)
	}
	return infos, position, nil
}

func selectHeld(ctx context.Context, list *mailman.MailingList, f filter.CompiledFilter) ([]mailman.HeldMessageInfo, string, error) {
	infos, position, err := heldInfos(ctx, list)
	if err != nil || f == nil {
		return infos, position, err
	}
	logger.Info().Str("filter", f.Expression()).Msg("Filtering held messages")
	infos, err = filter.Select(ctx, filters.Evaluator(), f, infos)
	return infos, position, err
}

func renderHeld(w io.Writer, infos []mailman.HeldMessageInfo) {
	items := make([]treeItem, len(infos))
	for i, info := range infos {
		items[i] = heldItem(info)
	}
	fmt.Fprint(w, formatTree("held message", items))
}

func runHeldList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	f, err := resolveFilter(heldFilter, heldPreset)
	if err != nil {
		return err
	}
	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}

	infos, position, err := selectHeld(ctx, list, f)
	if err != nil {
		return err
	}

	return render(cmd, infos, func(w io.Writer) {
		renderHeld(w, infos)
		if position != "" {
			fmt.Fprintln(w, position)
		}
	})
}

func runHeldSweep(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	action, ok := mailman.ParseAction(heldAction)
	if !ok {
		return fmt.Errorf("unknown moderation action %q", heldAction)
	}
	f, err := resolveFilter(heldFilter, heldPreset)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("sweep requires --filter or --preset")
	}

	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}
	infos, _, err := selectHeld(ctx, list, f)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		logger.Info().Msg("No held messages match the filter")
		printResult(cmd, "No held messages to %s", action)
		return nil
	}

	if outputFormat == formatTable {
		renderHeld(cmd.OutOrStdout(), infos)
	}
	if !isDryRun() && !confirm(cmd, fmt.Sprintf("%s %d held message(s)?", titleCase(string(action)), len(infos))) {
		logger.Info().Msg("Sweep cancelled by user")
		return nil
	}

	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = strconv.Itoa(info.RequestID)
	}
	return moderateIDs(cmd, list, ids, action)
}

func moderateHeld(cmd *cobra.Command, fqdn string, ids []string, action mailman.Action) error {
	list, err := getList(cmd, fqdn)
	if err != nil {
		return err
	}
	return moderateIDs(cmd, list, ids, action)
}

func moderateIDs(cmd *cobra.Command, list *mailman.MailingList, ids []string, action mailman.Action) error {
	result, err := applyBatch(commandContext(cmd), string(action), ids, func(ctx context.Context, id string) error {
		requestID, err := strconv.Atoi(id)
		if err != nil {
			return err
		}
		_, err = list.ModerateMessage(ctx, requestID, action)
		return err
	})

	if outputFormat != formatTable {
		if rerr := render(cmd, result.Succeeded, nil); rerr != nil {
			return rerr
		}
		return err
	}
	printResult(cmd, "%s: %d of %d held message(s)", titleCase(string(action)), len(result.Succeeded), result.Requested)
	return err
}
