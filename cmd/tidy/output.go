package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tidy-go/internal/app"
	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	movedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	duplicateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// formatOutcome renders one file's result on a single line.
func formatOutcome(o *tidy.Outcome) string {
	name := filepath.Base(o.Path)
	switch o.Action {
	case tidy.ActionMoved:
		line := movedStyle.Render("moved     ") + " " + name + " -> " + o.Destination
		if o.Err != nil {
			line += skippedStyle.Render(fmt.Sprintf(" (not recorded: %v)", o.Err))
		}
		return line
	case tidy.ActionDuplicate:
		return duplicateStyle.Render("duplicate ") + " " + name + " -> " + o.Destination +
			dimStyle.Render(" (original: "+o.Original.OriginalPath+")")
	case tidy.ActionSkipped:
		return skippedStyle.Render("skipped   ") + " " + name + dimStyle.Render(fmt.Sprintf(" (%s: %v)", o.Reason, o.Err))
	default:
		return dimStyle.Render("ignored    " + name + " (" + o.Reason + ")")
	}
}

// printSummary writes the batch result. Ignored files are listed only
// when verbose.
func printSummary(w io.Writer, s *tidy.Summary, verbose bool) {
	for _, o := range s.Outcomes {
		if o.Action == tidy.ActionIgnored && !verbose {
			continue
		}
		if o.Action == tidy.ActionMoved && o.Err == nil && !verbose {
			continue
		}
		fmt.Fprintln(w, formatOutcome(o))
	}

	fmt.Fprintln(w, titleStyle.Render(s.Message()))
	fmt.Fprintf(w, "%s  %s  %s\n",
		movedStyle.Render(fmt.Sprintf("moved %d", s.Moved)),
		duplicateStyle.Render(fmt.Sprintf("duplicates %d", s.Duplicates)),
		skippedStyle.Render(fmt.Sprintf("skipped %d", s.Skipped)),
	)
}

func printConfig(w io.Writer, cfg *config.Config) {
	row := func(k, v string) { fmt.Fprintf(w, "%-16s %s\n", titleStyle.Render(k+":"), v) }

	row("Host ID", cfg.HostID)
	row("Base Dir", cfg.BaseDir)
	row("Log Dir", cfg.LogDir)
	row("Watch Dirs", strings.Join(cfg.WatchDirs, ", "))
	row("Output Root", cfg.Organizer.OutputRoot)
	row("Duplicates", cfg.Organizer.DuplicatesDir)

	cats := make([]string, 0, len(cfg.Organizer.Folders))
	for c := range cfg.Organizer.Folders {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		row("Folder "+c, cfg.Organizer.Folders[c])
	}

	row("Database", cfg.Database.Type+" "+cfg.Database.DataDir)
	row("Ignore", strings.Join(cfg.Filesystem.Ignore, " "))
	row("Notify", orDefault(cfg.Notify.Type, "auto"))
	row("Encryption", orDefault(cfg.Encryption.Type, "none"))
	for _, v := range cfg.Vaults {
		row("Vault", v.Name+" ("+v.Type+")")
	}
}

func printStoreInfo(w io.Writer, info *app.StoreInfo) {
	row := func(k, v string) { fmt.Fprintf(w, "%-16s %s\n", titleStyle.Render(k+":"), v) }

	row("Path", info.Path)
	row("Schema", fmt.Sprintf("v%d", info.SchemaVersion))
	row("Records", fmt.Sprintf("%d", info.Records))
	row("Last run", fmt.Sprintf("#%d", info.LastRunID))
	row("Encryption", info.Encryption)

	switch {
	case info.Vault == "":
		row("Vault", dimStyle.Render("none configured"))
	case info.RemoteErr != nil:
		row("Vault", info.Vault+" "+skippedStyle.Render(info.RemoteErr.Error()))
	case info.RemoteVersion == 0:
		row("Vault", info.Vault+" (no snapshot)")
	default:
		row("Vault", fmt.Sprintf("%s (snapshot #%d)", info.Vault, info.RemoteVersion))
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
