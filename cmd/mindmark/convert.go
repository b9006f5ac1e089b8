package main

import (
	"fmt"

	"github.com/mindmark/tui/internal/docpath"
	"github.com/mindmark/tui/internal/export"
	"github.com/mindmark/tui/internal/xmind"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.xmind>",
	Short: "Convert a mind map without starting the UI",
	Long: `Convert writes the Markdown for an XMind file to stdout, or to the file
given with --output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closeLog, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		md, err := xmind.NewConverter().Convert(cmd.Context(), docpath.New(args[0]))
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		}
		dest := docpath.New(out)
		if dest.Ext() == "" {
			dest = dest.WithExt(".md")
		}
		if err := (export.FileWriter{}).Write(cmd.Context(), dest, md); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved: %s\n", dest)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "write the Markdown to this file instead of stdout")

	rootCmd.AddCommand(convertCmd)
}
