package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/mailman"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Moderate pending subscription requests",
}

var requestsListCmd = &cobra.Command{
	Use:   "list <fqdn-listname>",
	Short: "List subscription requests awaiting a moderator",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestsList,
}

func requestActionCmd(action mailman.Action) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <fqdn-listname> <token>...", action),
		Short: fmt.Sprintf("%s subscription requests", titleCase(string(action))),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return moderateRequests(cmd, args[0], args[1:], action)
		},
	}
}

func init() {
	requestsCmd.AddCommand(requestsListCmd)
	for _, action := range []mailman.Action{mailman.ActionAccept, mailman.ActionReject, mailman.ActionDiscard, mailman.ActionDefer} {
		requestsCmd.AddCommand(requestActionCmd(action))
	}
}

func runRequestsList(cmd *cobra.Command, args []string) error {
	list, err := getList(cmd, args[0])
	if err != nil {
		return err
	}
	requests, err := list.Requests(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get requests of %s: %w", args[0], err)
	}

	return render(cmd, requests, func(w io.Writer) {
		items := make([]treeItem, len(requests))
		for i, r := range requests {
			title := r.Email
			if r.DisplayName != "" {
				title = fmt.Sprintf("%s <%s>", r.DisplayName, r.Email)
			}
			items[i] = treeItem{
				Title: title,
				Details: []string{
					"Token: " + r.Token,
					fmt.Sprintf("Waiting on: %s | Requested: %s", r.TokenOwner, r.RequestDate),
				},
			}
		}
		fmt.Fprint(w, formatTree("request", items))
	})
}

func moderateRequests(cmd *cobra.Command, fqdn string, tokens []string, action mailman.Action) error {
	list, err := getList(cmd, fqdn)
	if err != nil {
		return err
	}

	result, err := applyBatch(commandContext(cmd), string(action), tokens, func(ctx context.Context, token string) error {
		_, err := list.ModerateRequest(ctx, token, action)
		return err
	})

	printResult(cmd, "%s: %d of %d request(s)", titleCase(string(action)), len(result.Succeeded), result.Requested)
	return err
}
