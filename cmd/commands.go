package main

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"press_archive/internal/app"
	"press_archive/internal/config"
	"press_archive/internal/logger"
)

func archiveCommand() *cobra.Command {
	var (
		tickers       []string
		delay         time.Duration
		out           string
		baseDir       string
		listingDir    string
		respectRobots bool
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Fetch every article linked from the saved listing pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, func(c *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("ticker") {
					c.Tickers = upper(tickers)
				}
				if flags.Changed("delay") {
					c.Fetch.DelayMS = int(delay / time.Millisecond)
				}
				if flags.Changed("out") {
					c.Archive.Output = out
				}
				if flags.Changed("base-dir") {
					c.Archive.BaseDir = baseDir
				}
				if flags.Changed("listing-dir") {
					c.Listing.Dir = listingDir
				}
				if flags.Changed("respect-robots") {
					c.Fetch.RespectRobots = respectRobots
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a := app.New(cfg, log, app.WithMirror(app.ConnectMirror(ctx, cfg.DB, log)))
			defer closeMirror(log, a)

			res, err := a.Archive(ctx)
			if res != nil {
				renderSkips(cmd.ErrOrStderr(), res.Skips)
			}
			return interrupted(log, err)
		},
	}

	cmd.Flags().StringSliceVarP(&tickers, "ticker", "t", nil, "tickers to archive, in order (repeatable or comma-separated)")
	cmd.Flags().DurationVar(&delay, "delay", 3*time.Second, "pause before each article request")
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive dataset path")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "directory that receives {ticker}/{ticker}{n}.html")
	cmd.Flags().StringVar(&listingDir, "listing-dir", "", "directory holding the saved {ticker}.html listing pages")
	cmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "honour robots.txt of the article host")

	return cmd
}

func validateCommand() *cobra.Command {
	var (
		list string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-extract headline and timestamp from archived articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, func(c *config.Config) {
				if cmd.Flags().Changed("list") {
					c.Validation.List = list
				}
				if cmd.Flags().Changed("out") {
					c.Validation.Output = out
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a := app.New(cfg, log, app.WithMirror(app.ConnectMirror(ctx, cfg.DB, log)))
			defer closeMirror(log, a)

			res, err := a.Validate(ctx, cfg.Validation.List)
			if res != nil {
				renderSkips(cmd.ErrOrStderr(), res.Skips)
			}
			return interrupted(log, err)
		},
	}

	cmd.Flags().StringVarP(&list, "list", "l", "", "line-delimited list of archived article paths")
	cmd.Flags().StringVarP(&out, "out", "o", "", "validation dataset path")

	return cmd
}

func listCommand() *cobra.Command {
	var (
		out     string
		baseDir string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Write the list of archived article files for validate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, func(c *config.Config) {
				if cmd.Flags().Changed("out") {
					c.Validation.List = out
				}
				if cmd.Flags().Changed("base-dir") {
					c.Archive.BaseDir = baseDir
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			paths, err := app.ListArchive(cfg.Archive.BaseDir, cfg.Archive.Ext)
			if err != nil {
				return err
			}
			if err := app.WriteList(cfg.Validation.List, paths); err != nil {
				return err
			}

			log.Info("Article list written",
				logger.String("path", cfg.Validation.List),
				logger.Int("files", len(paths)),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "file list path")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "archive directory to scan")

	return cmd
}

func inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Show what validate and readability see in archived articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			for _, p := range args {
				r, err := app.Inspect(p, cfg.Validation.Selectors, cfg.Archive.Ext)
				if err != nil {
					return err
				}
				renderReport(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func upper(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// closeMirror disconnects the database mirror after the dataset is written; a
// failure there does not change the stage's outcome.
func closeMirror(log logger.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("Mirror close failed", logger.Error(err))
	}
}
