package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/mailman"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show the Mailman server version information",
	Args:  cobra.NoArgs,
	RunE:  runSystem,
}

func runSystem(cmd *cobra.Command, args []string) error {
	versions, err := client.System(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get system information: %w", err)
	}

	return render(cmd, versions, func(w io.Writer) {
		fmt.Fprintf(w, "Mailman at %s\n", client.Connection().BaseURL())
		keys := make([]string, 0, len(versions))
		for k := range versions {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-20s %v\n", k+":", versions[k])
		}
	})
}

var (
	domainDescription string
	domainAlias       string
	domainOwners      []string
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Manage mail domains",
}

var domainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all domains",
	Args:  cobra.NoArgs,
	RunE:  runDomainsList,
}

var domainsShowCmd = &cobra.Command{
	Use:   "show <mail-host>",
	Short: "Show a domain and its owners",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainsShow,
}

var domainsCreateCmd = &cobra.Command{
	Use:   "create <mail-host>",
	Short: "Create a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainsCreate,
}

var domainsDeleteCmd = &cobra.Command{
	Use:   "delete <mail-host>",
	Short: "Delete a domain and all of its lists",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainsDelete,
}

func init() {
	domainsCreateCmd.Flags().StringVar(&domainDescription, "description", "", "domain description")
	domainsCreateCmd.Flags().StringVar(&domainAlias, "alias-domain", "", "alias domain for postfix")
	domainsCreateCmd.Flags().StringSliceVar(&domainOwners, "owner", nil, "owner address (repeatable)")

	domainsCmd.AddCommand(domainsListCmd, domainsShowCmd, domainsCreateCmd, domainsDeleteCmd)
}

func domainItem(info mailman.DomainInfo) treeItem {
	item := treeItem{Title: info.MailHost}
	if info.Description != "" {
		item.Details = append(item.Details, "Description: "+info.Description)
	}
	if info.AliasDomain != "" {
		item.Details = append(item.Details, "Alias: "+info.AliasDomain)
	}
	return item
}

func runDomainsList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	domains, err := client.Domains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	infos := make([]mailman.DomainInfo, 0, len(domains))
	for _, d := range domains {
		info, err := d.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	return render(cmd, infos, func(w io.Writer) {
		items := make([]treeItem, len(infos))
		for i, info := range infos {
			items[i] = domainItem(info)
		}
		fmt.Fprint(w, formatTree("domain", items))
	})
}

func runDomainsShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	domain, err := client.GetDomain(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get domain %s: %w", args[0], err)
	}
	info, err := domain.Info(ctx)
	if err != nil {
		return err
	}
	owners, err := domain.Owners(ctx)
	if err != nil {
		return fmt.Errorf("failed to get owners of %s: %w", args[0], err)
	}

	out := map[string]any{"domain": info, "owners": owners}
	return render(cmd, out, func(w io.Writer) {
		item := domainItem(info)
		for _, owner := range owners {
			item.Details = append(item.Details, fmt.Sprintf("Owner: %v", ownerAddress(owner)))
		}
		fmt.Fprint(w, formatTree("domain", []treeItem{item}))
	})
}

func ownerAddress(owner map[string]any) any {
	for _, key := range []string{"email", "address", "user_id"} {
		if v, ok := owner[key]; ok {
			return v
		}
	}
	return owner["self_link"]
}

func runDomainsCreate(cmd *cobra.Command, args []string) error {
	if isDryRun() {
		printResult(cmd, "Would create domain %s", args[0])
		return nil
	}

	domain, err := client.CreateDomain(commandContext(cmd), args[0], mailman.DomainOptions{
		Description: domainDescription,
		AliasDomain: domainAlias,
		Owners:      domainOwners,
	})
	if err != nil {
		return fmt.Errorf("failed to create domain %s: %w", args[0], err)
	}

	logger.Info().Str("domain", args[0]).Str("url", domain.URL()).Msg("Domain created")
	printResult(cmd, "Created domain %s", args[0])
	return nil
}

func runDomainsDelete(cmd *cobra.Command, args []string) error {
	if isDryRun() {
		printResult(cmd, "Would delete domain %s", args[0])
		return nil
	}
	if !confirm(cmd, fmt.Sprintf("Delete domain %s and all of its lists?", args[0])) {
		logger.Info().Msg("Deletion cancelled by user")
		return nil
	}

	if err := client.DeleteDomain(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete domain %s: %w", args[0], err)
	}
	printResult(cmd, "Deleted domain %s", args[0])
	return nil
}
