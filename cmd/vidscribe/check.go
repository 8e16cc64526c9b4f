package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vidscribe/internal/preflight"
)

var errChecksFailed = errors.New("required checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the installation and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configDetail := ctx.configPath
			if !ctx.configExists {
				configDetail += " (not found; using defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, configDetail, colorize))
			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, fmt.Sprintf("%s %s (%s)", cfg.Model.Backend, cfg.Model.Name, cfg.Model.Device), colorize))
			fmt.Fprintln(out, renderStatusLine("Audio extraction", statusInfo, yesNo(cfg.Audio.Extract), colorize))
			fmt.Fprintln(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r.Name, checkKind(r), r.Detail, colorize))
			}

			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				return fmt.Errorf("%w: %d of %d", errChecksFailed, len(blocking), len(results))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Ready to transcribe")
			return nil
		},
	}
}

func checkKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Optional:
		return statusWarn
	default:
		return statusError
	}
}
