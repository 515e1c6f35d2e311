package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mailmanctl/filter"
)

const (
	recordsHeld    = "held"
	recordsMembers = "members"
	recordsLists   = "lists"
)

var presetsOn string

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Inspect the filter presets from config",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured filter presets",
	Args:  cobra.NoArgs,
	RunE:  runPresetsList,
}

var presetsCountCmd = &cobra.Command{
	Use:   "count [fqdn-listname]",
	Short: "Count the records every preset matches",
	Long: `Evaluate every preset against the held messages or members of a list,
or against all lists, and print how many records each one matches.

  mailmanctl presets count test@example.com
  mailmanctl presets count test@example.com --on members
  mailmanctl presets count --on lists`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPresetsCount,
}

var presetsTestCmd = &cobra.Command{
	Use:   "test <preset> [fqdn-listname]",
	Short: "Show the records one preset matches",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPresetsTest,
}

func init() {
	for _, c := range []*cobra.Command{presetsCountCmd, presetsTestCmd} {
		c.Flags().StringVar(&presetsOn, "on", recordsHeld, "records to evaluate: held, members or lists")
	}
	presetsCmd.AddCommand(presetsListCmd, presetsCountCmd, presetsTestCmd)
}

func runPresetsList(cmd *cobra.Command, args []string) error {
	names := filters.ListFilters()
	expressions := make(map[string]string, len(names))
	items := make([]treeItem, 0, len(names))
	for _, name := range names {
		f, ok := filters.GetFilter(name)
		if !ok {
			continue
		}
		expressions[name] = f.Expression()
		items = append(items, treeItem{Title: name, Details: []string{"Filter: " + f.Expression()}})
	}

	return render(cmd, expressions, func(w io.Writer) {
		fmt.Fprint(w, formatTree("preset", items))
	})
}

// recordSet is what presets are evaluated against
type recordSet struct {
	noun     string
	subjects []filter.Subject
	items    []treeItem
}

func loadRecords(cmd *cobra.Command, fqdn string) (recordSet, error) {
	ctx := commandContext(cmd)

	switch presetsOn {
	case recordsLists:
		lists, err := client.Lists(ctx)
		if err != nil {
			return recordSet{}, fmt.Errorf("failed to list mailing lists: %w", err)
		}
		set := recordSet{noun: "list"}
		for _, l := range lists {
			info, err := l.Info(ctx)
			if err != nil {
				return recordSet{}, err
			}
			set.subjects = append(set.subjects, info)
			set.items = append(set.items, listItem(info))
		}
		return set, nil

	case recordsHeld, recordsMembers:
		if fqdn == "" {
			return recordSet{}, fmt.Errorf("--on %s needs a list", presetsOn)
		}
		list, err := getList(cmd, fqdn)
		if err != nil {
			return recordSet{}, err
		}

		if presetsOn == recordsHeld {
			held, err := list.Held(ctx)
			if err != nil {
				return recordSet{}, err
			}
			set := recordSet{noun: "held message"}
			for _, h := range held {
				info, err := h.Info(ctx)
				if err != nil {
					return recordSet{}, err
				}
				set.subjects = append(set.subjects, info)
				set.items = append(set.items, heldItem(info))
			}
			return set, nil
		}

		members, err := list.Members(ctx)
		if err != nil {
			return recordSet{}, err
		}
		infos, err := memberInfos(ctx, members)
		if err != nil {
			return recordSet{}, err
		}
		set := recordSet{noun: "member"}
		for _, info := range infos {
			set.subjects = append(set.subjects, info)
			set.items = append(set.items, memberItem(info))
		}
		return set, nil

	default:
		return recordSet{}, fmt.Errorf("unknown records %q: use held, members or lists", presetsOn)
	}
}

func runPresetsCount(cmd *cobra.Command, args []string) error {
	fqdn := ""
	if len(args) > 0 {
		fqdn = args[0]
	}
	set, err := loadRecords(cmd, fqdn)
	if err != nil {
		return err
	}

	results, err := filters.EvaluateAll(commandContext(cmd), set.subjects)
	if err != nil {
		return err
	}

	names := filters.ListFilters()
	counts := make(map[string]int, len(names))
	items := make([]treeItem, len(names))
	for i, name := range names {
		counts[name] = len(results[name])
		items[i] = treeItem{
			Title:   name,
			Details: []string{fmt.Sprintf("Matches: %d of %d %s(s)", counts[name], len(set.subjects), set.noun)},
		}
	}

	return render(cmd, counts, func(w io.Writer) {
		fmt.Fprint(w, formatTree("preset", items))
	})
}

func runPresetsTest(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])
	if _, ok := filters.GetFilter(name); !ok {
		return fmt.Errorf("preset '%s' not found in config", args[0])
	}
	fqdn := ""
	if len(args) > 1 {
		fqdn = args[1]
	}
	set, err := loadRecords(cmd, fqdn)
	if err != nil {
		return err
	}

	matches, err := filters.EvaluateFilter(commandContext(cmd), name, set.subjects)
	if err != nil {
		return err
	}

	matched := make([]filter.Subject, len(matches))
	items := make([]treeItem, len(matches))
	for i, idx := range matches {
		matched[i] = set.subjects[idx]
		items[i] = set.items[idx]
	}

	return render(cmd, matched, func(w io.Writer) {
		fmt.Fprint(w, formatTree(set.noun, items))
	})
}
