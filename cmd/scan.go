package cmd

import (
	"encoding/json"
	"io"
	"os"

	"stopcpd/clone"
	"stopcpd/render"
	"stopcpd/session"

	"github.com/spf13/cobra"
)

func newScanCmd(configFile *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "List the duplicated code in a project once and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args, *configFile)
			if err != nil {
				return err
			}

			matcher, err := session.NewMatcher(cfg)
			if err != nil {
				return err
			}
			det, err := session.NewDetector(cfg, matcher)
			if err != nil {
				return err
			}

			var clones []clone.Clone
			if !asJSON && render.IsTerminal(os.Stderr) {
				clones, err = render.Progress(cmd.Context(), cmd.ErrOrStderr(), "scanning "+cfg.Dir, det.Detect)
			} else {
				clones, err = det.Detect(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, clones)
			}
			opts := render.ReportOptions{}
			if f, ok := out.(*os.File); ok && render.IsTerminal(f) {
				opts.Width = render.GetTerminalWidth()
				opts.Color = true
			}
			return render.Clones(out, cfg.Dir, clones, opts)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print clones as JSON")
	return cmd
}

func writeJSON(w io.Writer, clones []clone.Clone) error {
	if clones == nil {
		clones = []clone.Clone{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(clones)
}
