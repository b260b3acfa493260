package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/storage"
	"github.com/pders01/analog/internal/tui"
)

const artistTimeout = 10 * time.Second

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "analog %s\n", Version)
		fmt.Fprintln(out, "Vinyl collection browser")
		fmt.Fprintln(out, "github.com/pders01/analog")
	},
}

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Write a default config file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.GenerateDefaultConfig(path); err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", path)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the collection.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sortKey, _ := cmd.Flags().GetString("sort")
		genre, _ := cmd.Flags().GetString("genre")
		style, _ := cmd.Flags().GetString("style")
		asJSON, _ := cmd.Flags().GetBool("json")

		if !validSortKey(sortKey) {
			return fmt.Errorf("unknown sort key %q (available: %s)", sortKey, strings.Join(collection.SortKeys[1:], ", "))
		}

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		items, err := a.releases(cmd.Context())
		if err != nil {
			return err
		}
		items = collection.Sort(collection.Filter(items, genre, style), sortKey)

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No records match.")
			return nil
		}
		writeTable(cmd.OutOrStdout(), items)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <release-id>",
	Short: "Print the details of one release.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		items, err := a.releases(cmd.Context())
		if err != nil {
			return err
		}
		r, ok := collection.Find(items, args[0])
		if !ok {
			return fmt.Errorf("release %s is not in the collection", args[0])
		}
		return a.printMarkdown(cmd, tui.ReleaseMarkdown(r))
	},
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Print the record of the day.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := a.selector.Reset(); err != nil {
				return err
			}
		}

		items, err := a.releases(cmd.Context())
		if err != nil {
			return err
		}
		res := a.selector.Pick(items)

		var artist *discogs.Artist
		if res.Pick != nil && res.Pick.ArtistID > 0 {
			ctx, cancel := context.WithTimeout(cmd.Context(), artistTimeout)
			artist, err = a.client.Artist(ctx, res.Pick.ArtistID)
			cancel()
			if err != nil {
				debuglog.Warnf("pick: artist %d: %v", res.Pick.ArtistID, err)
				artist = nil
			}
		}
		return a.printMarkdown(cmd, tui.PickMarkdown(res, artist, a.cfg.UI.Profile.MaxLength))
	},
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the collection folders.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		folders, err := a.client.Folders(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tRECORDS\t")
		for _, f := range folders {
			fmt.Fprintf(w, "%d\t%s\t%d\t\n", f.ID, f.Name, f.Count)
		}
		return w.Flush()
	},
}

func init() {
	generateConfigCmd.Flags().String("path", "", "where to write the file (default is ~/.config/analog/config.toml)")

	listCmd.Flags().String("sort", collection.SortArtist, "sort key: "+strings.Join(collection.SortKeys[1:], ", "))
	listCmd.Flags().String("genre", "", "only records tagged with this genre")
	listCmd.Flags().String("style", "", "only records tagged with this style")
	listCmd.Flags().Bool("json", false, "print JSON instead of a table")

	pickCmd.Flags().Bool("reset", false, "forget today's pick and the history before picking")

	for _, c := range []*cobra.Command{showCmd, pickCmd} {
		c.Flags().Bool("raw", false, "print markdown without terminal styling")
	}
}

func validSortKey(key string) bool {
	for _, k := range collection.SortKeys {
		if k == key {
			return true
		}
	}
	return false
}

func writeTable(out io.Writer, items []*storage.Release) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tARTIST\tTITLE\tYEAR\tCOPIES\t")
	for _, r := range items {
		year := "-"
		if r.Year > 0 {
			year = fmt.Sprint(r.Year)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t\n", r.ID, r.Artist, r.Title, year, r.Copies)
	}
	w.Flush()
}

// writeJSON prints the releases without their raw API payloads.
func writeJSON(out io.Writer, items []*storage.Release) error {
	trimmed := make([]storage.Release, len(items))
	for i, r := range items {
		trimmed[i] = *r
		trimmed[i].Raw = nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(trimmed)
}

func (a *app) printMarkdown(cmd *cobra.Command, md string) error {
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		_, err := io.WriteString(cmd.OutOrStdout(), md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(a.cfg.UI.Profile.WordWrapMaxWidth),
	)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), rendered)
	return err
}
