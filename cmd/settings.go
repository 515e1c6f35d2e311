package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/restbase"
)

var settingsMemberID string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change list configuration or member preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show <fqdn-listname> [key]...",
	Short: "Show list settings in server order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <fqdn-listname> <key=value>...",
	Short: "Change list settings",
	Long: `Change list settings. Read-only keys such as list_id or volume
are never sent to the server.

  mailmanctl settings set test@example.com description="Test list" max_message_size=80`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSettingsSet,
}

func init() {
	for _, c := range []*cobra.Command{settingsShowCmd, settingsSetCmd} {
		c.Flags().StringVar(&settingsMemberID, "member", "", "use the preferences of this member id instead of the list configuration")
	}
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
}

func loadSettings(cmd *cobra.Command, fqdn string) (*restbase.Settings, error) {
	ctx := commandContext(cmd)
	if settingsMemberID != "" {
		member, err := client.GetMemberByID(ctx, settingsMemberID)
		if err != nil {
			return nil, fmt.Errorf("failed to get member %s: %w", settingsMemberID, err)
		}
		return member.Preferences(), nil
	}

	list, err := getList(cmd, fqdn)
	if err != nil {
		return nil, err
	}
	return list.Settings(ctx)
}

// parseAssignments splits key=value arguments, keeping their order
func parseAssignments(args []string) ([]string, map[string]string, error) {
	keys := make([]string, 0, len(args))
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = value
	}
	return keys, values, nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	settings, err := loadSettings(cmd, args[0])
	if err != nil {
		return err
	}

	keys := args[1:]
	if len(keys) == 0 {
		if keys, err = settings.Keys(ctx); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
	}

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		value, ok, err := settings.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown setting %q", key)
		}
		out[key] = value
	}

	return render(cmd, out, func(w io.Writer) {
		width := 0
		for _, key := range keys {
			width = max(width, len(key))
		}
		for _, key := range keys {
			marker := ""
			if restbase.IsReadOnly(key) {
				marker = " (read-only)"
			}
			fmt.Fprintf(w, "%-*s  %v%s\n", width, key, out[key], marker)
		}
	})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	keys, values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	settings, err := loadSettings(cmd, args[0])
	if err != nil {
		return err
	}

	for _, key := range keys {
		if restbase.IsReadOnly(key) {
			logger.Warn().Str("key", key).Msg("Setting is read-only and will not be sent")
		}
		if err := settings.Set(ctx, key, values[key]); err != nil {
			return err
		}
	}

	if isDryRun() {
		payload, err := settings.Payload(ctx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if v, ok := payload[key]; ok {
				printResult(cmd, "Would set %s = %v", key, v)
			}
		}
		return nil
	}

	if _, err := settings.Save(ctx); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	printResult(cmd, "Saved %d setting(s) on %s", len(keys), args[0])
	return nil
}
