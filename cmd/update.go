package cmd

import (
	"fmt"
	"runtime"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const repoSlug = "s0up4200/mailmanctl"

var updateCmd = &cobra.Command{
	Use:         "update",
	Short:       "Update mailmanctl to the latest release",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoClient: "true"},
	RunE:        runUpdate,
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoClient: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mailmanctl %s (built %s, %s %s/%s)\n",
			appVersion, appBuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// isNewer reports whether latest is a newer release than current
func isNewer(current, latest string) (bool, error) {
	cur, err := semver.ParseTolerant(current)
	if err != nil {
		return false, fmt.Errorf("cannot compare development build %q: %w", current, err)
	}
	next, err := semver.ParseTolerant(latest)
	if err != nil {
		return false, fmt.Errorf("invalid release version %q: %w", latest, err)
	}
	return next.GT(cur), nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found", runtime.GOOS, runtime.GOARCH)
	}

	newer, err := isNewer(appVersion, latest.Version())
	if err != nil {
		return err
	}
	if !newer {
		fmt.Fprintf(out, "Current version %s is the latest\n", appVersion)
		return nil
	}

	if dryRun {
		fmt.Fprintf(out, "[dry-run] Would update %s -> %s\n", appVersion, latest.Version())
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	logger.Info().Str("from", appVersion).Str("to", latest.Version()).Msg("Updated")
	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version())
	return nil
}
