package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/cover"
	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/media"
	"github.com/pders01/analog/internal/pick"
	"github.com/pders01/analog/internal/search"
	"github.com/pders01/analog/internal/storage"
	"github.com/pders01/analog/internal/tui"
	"github.com/pders01/analog/internal/validation"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	cfgFile   string
	debug     bool
	ephemeral bool
	quiet     bool
)

// newBaseURLValidator checks the configured API root. Tests swap in the
// permissive validator to reach httptest servers on loopback.
var newBaseURLValidator = validation.NewURLValidator

// rootCmd runs the interactive browser when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "analog",
	Short: "Browse your Discogs vinyl collection from the terminal.",
	Long: `analog fetches your Discogs collection, lets you sort, filter and search it,
and puts one record of the day on the turntable.

Credentials come from the [discogs] section of ~/.config/analog/config.toml
or from DISCOGS_TOKEN and DISCOGS_USERNAME.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/analog/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to the log file")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep picks and the search index in memory only")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip the startup banner")

	rootCmd.AddCommand(versionCmd, generateConfigCmd, listCmd, showCmd, pickCmd, foldersCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = debuglog.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	client   *discogs.Client
	fetcher  *collection.Fetcher
	selector *pick.Selector
	closers  []func() error
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	level := debuglog.ParseLogLevel(cfg.Log.Level)
	if debug {
		level = debuglog.LevelDebug
	}
	if err := debuglog.Setup(level, cfg.Log.Path); err != nil {
		return nil, err
	}

	base, err := newBaseURLValidator().ValidateBaseURL(cfg.Discogs.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid discogs.base_url: %w", err)
	}
	cfg.Discogs.BaseURL = base

	a := &app{cfg: cfg}

	var kv pick.KV
	if ephemeral {
		kv = storage.NewMemoryKV()
	} else {
		store, err := storage.NewStoreWithTimeout(cfg.Database.Path, cfg.Database.Timeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		kv = store
	}

	a.client = discogs.NewClient(cfg)
	a.fetcher = collection.NewFetcher(a.client, cfg)
	a.selector = pick.NewSelector(kv, cfg.Pick.HistorySize, time.Now)

	debuglog.WithFields(map[string]interface{}{
		"base_url":  base,
		"ephemeral": ephemeral,
		"store":     cfg.Database.Path,
	}).Infof("analog %s starting", Version)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			debuglog.Warnf("close: %v", err)
		}
	}
}

// releases fetches the collection, failing only when nothing could be
// loaded at all.
func (a *app) releases(ctx context.Context) ([]*storage.Release, error) {
	snap := a.fetcher.Fetch(ctx)
	if len(snap.Items) == 0 && snap.Err != nil {
		return nil, snap.Err
	}
	return snap.Items, nil
}

// searcher prefers the persistent bleve index and falls back to the
// in-process engine when the index cannot be opened.
func (a *app) searcher() search.Searcher {
	path := a.cfg.Database.SearchIndex
	if ephemeral {
		path = ""
	}
	engine, err := search.NewBleveEngine(path)
	if err != nil {
		debuglog.Warnf("search: bleve unavailable, using in-process engine: %v", err)
		fallback := search.NewEngine()
		a.fetcher.OnUpdate(fallback.OnCollectionUpdated)
		return fallback
	}
	a.closers = append(a.closers, engine.Close)
	a.fetcher.OnUpdate(engine.OnCollectionUpdated)
	return engine
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	tui.ApplyColors(a.cfg.UI.Colors)
	if !quiet {
		tui.ShowBanner(Version)
	}

	deps := tui.Deps{
		Context:    cmd.Context(),
		Collection: a.fetcher,
		Picker:     a.selector,
		Search:     a.searcher(),
		Artists:    a.client,
		Covers:     cover.NewFetcher(a.cfg.Discogs.HTTPTimeout, a.cfg.Discogs.UserAgent, nil),
		Opener:     media.NewOpener(a.cfg),
	}

	p := tea.NewProgram(tui.NewApp(a.cfg, deps), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
