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
	"github.com/s0up4200/mailmanctl/restbase"
)

var (
	listDomain     string
	listAdvertised bool
	listFilter     string
	listPreset     string
	listPage       int
	listRoleAdd    []string
	listRoleRemove []string
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage mailing lists",
}

var listsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mailing lists",
	Long: `List mailing lists, optionally restricted to one domain.

Lists can be selected with a filter over display_name, fqdn_listname,
list_id, list_name, mail_host, member_count and volume:

  mailmanctl lists list --filter 'member_count:>100'`,
	Args: cobra.NoArgs,
	RunE: runListsList,
}

var listsShowCmd = &cobra.Command{
	Use:   "show <fqdn-listname>",
	Short: "Show a mailing list",
	Args:  cobra.ExactArgs(1),
	RunE:  runListsShow,
}

var listsCreateCmd = &cobra.Command{
	Use:   "create <name@domain>",
	Short: "Create a mailing list in an existing domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runListsCreate,
}

var listsDeleteCmd = &cobra.Command{
	Use:   "delete <fqdn-listname>",
	Short: "Delete a mailing list",
	Args:  cobra.ExactArgs(1),
	RunE:  runListsDelete,
}

var listsOwnersCmd = &cobra.Command{
	Use:   "owners <fqdn-listname>",
	Short: "Show, add or remove list owners",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListsRole(cmd, args[0], mailman.RoleOwner)
	},
}

var listsModeratorsCmd = &cobra.Command{
	Use:   "moderators <fqdn-listname>",
	Short: "Show, add or remove list moderators",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListsRole(cmd, args[0], mailman.RoleModerator)
	},
}

var listsArchiversCmd = &cobra.Command{
	Use:   "archivers <fqdn-listname> [name=on|off...]",
	Short: "Show or switch list archivers",
	Long: `Show the archivers of a list, or enable and disable them.

  mailmanctl lists archivers test@example.com
  mailmanctl lists archivers test@example.com hyperkitty=on mhonarc=off`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListsArchivers,
}

func init() {
	listsListCmd.Flags().StringVar(&listDomain, "domain", "", "only lists of this mail host")
	listsListCmd.Flags().BoolVar(&listAdvertised, "advertised", false, "only advertised lists (with --domain)")
	listsListCmd.Flags().IntVar(&listPage, "page", 0, "fetch a single page instead of all lists")
	addFilterFlags(listsListCmd, &listFilter, &listPreset)

	for _, c := range []*cobra.Command{listsOwnersCmd, listsModeratorsCmd} {
		c.Flags().StringSliceVar(&listRoleAdd, "add", nil, "address to add (repeatable)")
		c.Flags().StringSliceVar(&listRoleRemove, "remove", nil, "address to remove (repeatable)")
	}

	listsCmd.AddCommand(listsListCmd, listsShowCmd, listsCreateCmd, listsDeleteCmd, listsOwnersCmd, listsModeratorsCmd, listsArchiversCmd)
}

func listItem(info mailman.ListInfo) treeItem {
	item := treeItem{
		Title: info.FQDNListname,
		Details: []string{
			fmt.Sprintf("ID: %s | Members: %d | Volume: %d", info.ListID, info.MemberCount, info.Volume),
		},
	}
	if info.DisplayName != "" {
		item.Details = append(item.Details, "Name: "+info.DisplayName)
	}
	return item
}

func fetchLists(ctx context.Context) ([]*mailman.MailingList, string, error) {
	var page *restbase.Page[*mailman.MailingList]

	if listDomain != "" {
		domain, err := client.GetDomain(ctx, listDomain)
		if err != nil {
			return nil, "", fmt.Errorf("failed to get domain %s: %w", listDomain, err)
		}
		if listPage < 1 {
			lists, err := domain.Lists(ctx, listAdvertised)
			return lists, "", err
		}
		page, err = domain.ListPage(ctx, cfg.Mailman.PageSize, listPage, listAdvertised)
		if err != nil {
			return nil, "", err
		}
	} else {
		if listPage < 1 {
			lists, err := client.Lists(ctx)
			return lists, "", err
		}
		page = client.ListPage(cfg.Mailman.PageSize, listPage)
	}

	return pageEntries(ctx, page)
}

// pageEntries fetches one page and describes its position
func pageEntries[T any](ctx context.Context, page *restbase.Page[T]) ([]T, string, error) {
	entries, err := page.Entries(ctx)
	if err != nil {
		return nil, "", err
	}
	pages, err := page.PageCount(ctx)
	if err != nil {
		return nil, "", err
	}
	return entries, fmt.Sprintf("Page %d of %d", page.Number(), pages), nil
}

func runListsList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	f, err := resolveFilter(listFilter, listPreset)
	if err != nil {
		return err
	}

	lists, position, err := fetchLists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mailing lists: %w", err)
	}

	infos := make([]mailman.ListInfo, 0, len(lists))
	for _, l := range lists {
		info, err := l.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if f != nil {
		logger.Info().Str("filter", f.Expression()).Msg("Filtering lists")
		infos, err = filter.Select(ctx, filters.Evaluator(), f, infos)
		if err != nil {
			return err
		}
	}

	return render(cmd, infos, func(w io.Writer) {
		items := make([]treeItem, len(infos))
		for i, info := range infos {
			items[i] = listItem(info)
		}
		fmt.Fprint(w, formatTree("list", items))
		if position != "" {
			fmt.Fprintln(w, position)
		}
	})
}

func runListsShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}
	info, err := list.Info(ctx)
	if err != nil {
		return err
	}
	owners, err := list.Owners(ctx)
	if err != nil {
		return err
	}
	moderators, err := list.Moderators(ctx)
	if err != nil {
		return err
	}

	out := map[string]any{"list": info, "owners": owners, "moderators": moderators}
	return render(cmd, out, func(w io.Writer) {
		item := listItem(info)
		if len(owners) > 0 {
			item.Details = append(item.Details, "Owners: "+strings.Join(owners, ", "))
		}
		if len(moderators) > 0 {
			item.Details = append(item.Details, "Moderators: "+strings.Join(moderators, ", "))
		}
		fmt.Fprint(w, formatTree("list", []treeItem{item}))
	})
}

func runListsCreate(cmd *cobra.Command, args []string) error {
	name, host, ok := strings.Cut(args[0], "@")
	if !ok || name == "" || host == "" {
		return fmt.Errorf("list name must look like name@domain, got %q", args[0])
	}
	if isDryRun() {
		printResult(cmd, "Would create list %s", args[0])
		return nil
	}

	ctx := commandContext(cmd)
	domain, err := client.GetDomain(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to get domain %s: %w", host, err)
	}
	list, err := domain.CreateList(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create list %s: %w", args[0], err)
	}

	logger.Info().Str("list", args[0]).Str("url", list.URL()).Msg("List created")
	printResult(cmd, "Created list %s", args[0])
	return nil
}

func runListsDelete(cmd *cobra.Command, args []string) error {
	if isDryRun() {
		printResult(cmd, "Would delete list %s", args[0])
		return nil
	}
	if !confirm(cmd, fmt.Sprintf("Delete list %s?", args[0])) {
		logger.Info().Msg("Deletion cancelled by user")
		return nil
	}

	if err := client.DeleteList(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete list %s: %w", args[0], err)
	}
	printResult(cmd, "Deleted list %s", args[0])
	return nil
}

func runListsRole(cmd *cobra.Command, fqdn, role string) error {
	ctx := commandContext(cmd)
	list, err := getList(cmd, fqdn)
	if err != nil {
		return err
	}

	if len(listRoleAdd) > 0 || len(listRoleRemove) > 0 {
		if _, err := applyBatch(ctx, "add "+role, listRoleAdd, func(ctx context.Context, address string) error {
			return list.AddRole(ctx, role, address)
		}); err != nil {
			return err
		}
		if _, err := applyBatch(ctx, "remove "+role, listRoleRemove, func(ctx context.Context, address string) error {
			return list.RemoveRole(ctx, role, address)
		}); err != nil {
			return err
		}
		printResult(cmd, "Updated %ss of %s (+%d, -%d)", role, fqdn, len(listRoleAdd), len(listRoleRemove))
		return nil
	}

	var addresses []string
	if role == mailman.RoleOwner {
		addresses, err = list.Owners(ctx)
	} else {
		addresses, err = list.Moderators(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to get %ss of %s: %w", role, fqdn, err)
	}

	return render(cmd, addresses, func(w io.Writer) {
		items := make([]treeItem, len(addresses))
		for i, a := range addresses {
			items[i] = treeItem{Title: a}
		}
		fmt.Fprint(w, formatTree(role, items))
	})
}

// parseSwitches turns name=on|off arguments into archiver states
func parseSwitches(args []string) (map[string]bool, error) {
	keys, values, err := parseAssignments(args)
	if err != nil {
		return nil, err
	}
	switches := make(map[string]bool, len(keys))
	for _, key := range keys {
		switch strings.ToLower(values[key]) {
		case "on", "yes":
			switches[key] = true
		case "off", "no":
			switches[key] = false
		default:
			b, err := strconv.ParseBool(values[key])
			if err != nil {
				return nil, fmt.Errorf("archiver %s: expected on or off, got %q", key, values[key])
			}
			switches[key] = b
		}
	}
	return switches, nil
}

func runListsArchivers(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	switches, err := parseSwitches(args[1:])
	if err != nil {
		return err
	}
	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}

	if len(switches) > 0 {
		if isDryRun() {
			printResult(cmd, "Would update %d archiver(s) of %s", len(switches), args[0])
			return nil
		}
		if err := list.SetArchivers(ctx, switches); err != nil {
			return fmt.Errorf("failed to update archivers of %s: %w", args[0], err)
		}
		logger.Info().Str("list", args[0]).Int("archivers", len(switches)).Msg("Archivers updated")
		printResult(cmd, "Updated %d archiver(s) of %s", len(switches), args[0])
		return nil
	}

	archivers, err := list.Archivers(ctx)
	if err != nil {
		return err
	}
	names, err := archivers.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to get archivers of %s: %w", args[0], err)
	}
	state, err := archivers.All(ctx)
	if err != nil {
		return err
	}

	return render(cmd, state, func(w io.Writer) {
		items := make([]treeItem, len(names))
		for i, name := range names {
			status := "off"
			if enabled, _ := state[name].(bool); enabled {
				status = "on"
			}
			items[i] = treeItem{Title: name, Details: []string{"Enabled: " + status}}
		}
		fmt.Fprint(w, formatTree("archiver", items))
	})
}
