// Package main provides the dynaplay CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"dynaplay/internal/app/breaker"
	"dynaplay/internal/app/runner"
	"dynaplay/internal/domain/dynamic"
	"dynaplay/internal/domain/run"
	"dynaplay/internal/infra/config"
	"dynaplay/internal/infra/logger"
	"dynaplay/internal/infra/spotify"
	"dynaplay/internal/infra/store"
)

var (
	app        = kingpin.New("dynaplay", "Dynamic Spotify playlist synchronizer")
	configPath = app.Flag("config", "Path to config file").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// run command
	runCmd      = app.Command("run", "Execute a dynamic playlist configuration")
	runConfigID = runCmd.Arg("config-id", "Configuration ID").Required().String()

	// configs commands
	configsCmd       = app.Command("configs", "Manage dynamic playlist configurations")
	configsImportCmd = configsCmd.Command("import", "Import a configuration from a YAML/JSON file")
	configsImportSrc = configsImportCmd.Arg("file", "Configuration file").Required().String()
	configsListCmd   = configsCmd.Command("list", "List stored configurations")
	configsDeleteCmd = configsCmd.Command("delete", "Delete a configuration")
	configsDeleteID  = configsDeleteCmd.Arg("config-id", "Configuration ID").Required().String()

	// history commands
	historyCmd      = app.Command("history", "Manage run history")
	historyLimit    = historyCmd.Flag("limit", "Maximum records to show").Default("20").Int()
	historyShowCmd  = historyCmd.Command("show", "Show run history (default)").Default()
	historyClearCmd = historyCmd.Command("clear", "Delete all run history")

	// playlists command
	playlistsCmd     = app.Command("playlists", "List the user's Spotify playlists")
	playlistsRefresh = playlistsCmd.Flag("refresh", "Bypass the cached playlist list").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	// CLI flags override the config file's log settings.
	loggerConfig := logger.Config{Output: cfg.Log.Output, Level: cfg.Log.Level, File: cfg.Log.File}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	ctx := context.Background()

	switch command {
	case runCmd.FullCommand():
		executeRun(ctx, cfg, db, *runConfigID)
	case configsImportCmd.FullCommand():
		importConfig(ctx, db, *configsImportSrc)
	case configsListCmd.FullCommand():
		listConfigs(ctx, db)
	case configsDeleteCmd.FullCommand():
		deleteConfig(ctx, db, *configsDeleteID)
	case historyShowCmd.FullCommand():
		showHistory(ctx, db, *historyLimit)
	case historyClearCmd.FullCommand():
		clearHistory(ctx, db)
	case playlistsCmd.FullCommand():
		listPlaylists(ctx, cfg, db, *playlistsRefresh)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newService(ctx context.Context, cfg *config.Config, db *store.Store) *spotify.Service {
	brk := breaker.New()
	client, err := spotify.NewClient(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	}, brk)
	if err != nil {
		fatal(err)
	}
	return spotify.NewService(client, db, brk)
}

func executeRun(ctx context.Context, cfg *config.Config, db *store.Store, configID string) {
	svc := newService(ctx, cfg, db)

	rec, err := runner.New(db, svc).Run(ctx, configID, run.TriggerManual, func(processed, total int) {
		zlog.Info().Msgf("Progress: %d/%d", processed, total)
	})
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Run %s finished: %s (%d tracks)\n", rec.ID, rec.Status, rec.TracksProcessed)
	if rec.WarningMessage != "" {
		fmt.Printf("\nWarning:\n%s\n", rec.WarningMessage)
	}
}

// configDocument is the on-disk import form. Sources may be written
// directly or in the tagged kind/settings form under source_entries.
type configDocument struct {
	dynamic.Config `yaml:",inline"`
	SourceEntries  []dynamic.SourceEntry `yaml:"source_entries,omitempty"`
}

func importConfig(ctx context.Context, db *store.Store, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}

	var doc configDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		fatal(err)
	}

	cfg := doc.Config
	for _, entry := range doc.SourceEntries {
		src, err := dynamic.NewSource(entry)
		if err != nil {
			fatal(err)
		}
		cfg.Sources = append(cfg.Sources, src)
	}

	if err := db.SaveConfig(ctx, &cfg); err != nil {
		fatal(err)
	}
	fmt.Printf("Imported configuration %q (%s)\n", cfg.Name, cfg.ID)
}

func listConfigs(ctx context.Context, db *store.Store) {
	configs, err := db.ListConfigs(ctx)
	if err != nil {
		fatal(err)
	}

	if len(configs) == 0 {
		fmt.Println("No configurations stored")
		return
	}
	for _, cfg := range configs {
		state := "enabled"
		if !cfg.Enabled {
			state = "disabled"
		}
		fmt.Printf("%s  %-30s  target=%s  mode=%s  sources=%d  %s\n",
			cfg.ID, cfg.Name, cfg.TargetPlaylistID, cfg.UpdateMode, len(cfg.Sources), state)
	}
}

func deleteConfig(ctx context.Context, db *store.Store, id string) {
	if err := db.DeleteConfig(ctx, id); err != nil {
		fatal(err)
	}
	fmt.Printf("Deleted configuration %s\n", id)
}

func showHistory(ctx context.Context, db *store.Store, limit int) {
	records, err := db.ListRuns(ctx, limit)
	if err != nil {
		fatal(err)
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded")
		return
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s  %s  %-7s  %-25s  %d tracks",
			rec.ID, rec.StartedAt.Local().Format("2006-01-02 15:04:05"), rec.Status, rec.ConfigName, rec.TracksProcessed)
		if rec.ErrorMessage != "" {
			line += "  error: " + rec.ErrorMessage
		}
		if rec.WarningMessage != "" {
			line += "  (with warning)"
		}
		fmt.Println(line)
	}
}

func clearHistory(ctx context.Context, db *store.Store) {
	removed, err := db.ClearRuns(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Removed %d run records\n", removed)
}

func listPlaylists(ctx context.Context, cfg *config.Config, db *store.Store, refresh bool) {
	svc := newService(ctx, cfg, db)

	playlists, err := svc.ListPlaylists(ctx, refresh)
	if err != nil {
		fatal(err)
	}

	for _, p := range playlists {
		editable := " "
		if p.Editable {
			editable = "*"
		}
		fmt.Printf("%s %s  %-40s  %s (%d tracks)\n", editable, p.ID, p.Name, p.Owner, p.TrackCount)
	}
}
