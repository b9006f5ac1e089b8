// Package main is the entry point for the mindmark terminal application.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mindmark/tui/internal/app"
	"github.com/mindmark/tui/internal/config"
	"github.com/mindmark/tui/internal/dialog"
	"github.com/mindmark/tui/internal/export"
	"github.com/mindmark/tui/internal/host"
	"github.com/mindmark/tui/internal/render"
	"github.com/mindmark/tui/internal/session"
	"github.com/mindmark/tui/internal/xmind"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mindmark [file.xmind]",
	Short: "Convert XMind mind maps to Markdown",
	Long: `mindmark opens an XMind mind map, shows its Markdown rendering and saves
it as a .md file. Press o to pick a file, or paste a path into the window.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
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

		var initial string
		if len(args) == 1 {
			initial = args[0]
		}
		return runTUI(cfg, initial)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: "+config.DefaultPath()+")")
	rootCmd.Flags().String("start-dir", "", "directory the file dialogs open in")
	rootCmd.Flags().String("style", "", "preview style: auto, dark, light, notty or a glamour JSON style file")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("start_dir", rootCmd.Flags().Lookup("start-dir"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
}

func initConfig() {
	viper.SetEnvPrefix("MINDMARK")
	viper.AutomaticEnv()
}

// loadConfig reads the config file and applies flag and environment
// overrides on top of it.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(config.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dir := viper.GetString("start_dir"); dir != "" {
		cfg.Dialog.StartDir = dir
	}
	if style := viper.GetString("style"); style != "" {
		cfg.Preview.Style = style
	}
	return cfg, nil
}

// setupLogging sends the standard logger to the configured file. The TUI
// owns stdout, so nothing is logged to the terminal.
func setupLogging(cfg *config.Config) (func(), error) {
	file := cfg.LogFile()
	if file == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := tea.LogToFile(file, "mindmark")
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return func() { _ = f.Close() }, nil
}

func runTUI(cfg *config.Config, initial string) error {
	renderer, err := render.New(cfg.Preview.Style, cfg.Preview.WordWrap)
	if err != nil {
		return err
	}

	bridge := &host.Bridge{}
	gate := host.NewGate(
		host.All(bridge, host.TerminalProbe(os.Stdin)),
		host.WithPollInterval(cfg.Gate.PollInterval),
		host.WithTimeout(cfg.Gate.Timeout),
	)
	dialogs := dialog.NewService()
	defer dialogs.Close()
	feed := app.NewFeed()

	ctrl := session.New(gate, session.Collaborators{
		Sources:      dialogs,
		Destinations: dialogs,
		Converter:    xmind.NewConverter(),
		Writer:       export.FileWriter{},
		Opener:       export.SystemOpener{Command: cfg.Export.OpenCommand},
	},
		session.WithObserver(feed.Publish),
		session.WithOpenAfterSave(cfg.Export.OpenAfterSave),
	)

	m := app.New(app.Deps{
		Controller: ctrl,
		Gate:       gate,
		Bridge:     bridge,
		Dialogs:    dialogs,
		Feed:       feed,
		Renderer:   renderer,
		StartDir:   cfg.StartDir(),
		ShowHidden: cfg.Dialog.ShowHidden,
		WordWrap:   cfg.Preview.WordWrap,
		Initial:    initial,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
