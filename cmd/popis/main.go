package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/popis/internal/api"
	"github.com/erazemk/popis/internal/audit"
	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/blob"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/ident"
	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/importer"
	"github.com/erazemk/popis/internal/items"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/receipt"
	"github.com/erazemk/popis/internal/store"
	"github.com/erazemk/popis/internal/taxonomy"
)

const usage = `Usage: popis [command] [flags]

Commands:
  serve     run the HTTP API (default)
  import    import items from a CSV or XLSX file and print the result
  token     mint an actor token

Common flags:
  -c, -config <path>      YAML config file (default: none, env POPIS_* only)
  -h, -help               show this help and exit

import flags:
  -f, -file <path>        file to import (.csv or .xlsx)
  -actor <name>           actor recorded in the audit log (default: cli)

token flags:
  -actor <name>           actor named by the token
  -ttl <duration>         token lifetime (default: 720h)
  -revoke <token>         revoke an issued token instead of minting one
`

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "import":
		err = runImport(args)
	case "token":
		err = runToken(args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("popis failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set with the shared -config flag bound to path.
func newFlagSet(name string, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(path, "config", "", "")
	fs.StringVar(path, "c", "", "")
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return nil
}

// app holds the services every command shares.
type app struct {
	cfg      *config.Config
	db       *db.DB
	store    *store.Store
	audit    *audit.Log
	metrics  *metrics.Metrics
	live     *config.Live
	urls     *ident.Resolver
	items    *items.Manager
	importer *importer.Importer
	closeLog func()
}

// open loads configuration, sets up logging, and opens and migrates the
// database.
func open(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	closeLog, err := setupLogger(cfg.Log.File, cfg.Log.Format, cfg.App.Env)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(db.Driver(cfg.DB.Driver), cfg.DB.DSN)
	if err != nil {
		closeLog()
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		closeLog()
		return nil, err
	}
	slog.Info("database ready", "driver", cfg.DB.Driver)

	a := &app{
		cfg:      cfg,
		db:       database,
		live:     config.NewLive(configPath, cfg.Settings),
		urls:     ident.NewResolver(cfg.App.BaseURL),
		closeLog: closeLog,
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	a.store = store.New(database)
	a.audit = audit.New(a.store)
	a.items = items.New(a.store, a.audit, a.urls,
		items.WithPageSize(a.live.ItemsPerPage), items.WithMetrics(a.metrics))
	a.importer = importer.New(a.items, a.audit, a.metrics)
	return a, nil
}

func (a *app) close() {
	a.db.Close()
	a.closeLog()
}

// secret returns the configured token secret or the one stored in the
// database, generating it on first use.
func (a *app) secret(ctx context.Context) (string, error) {
	if a.cfg.Auth.Secret != "" {
		return a.cfg.Auth.Secret, nil
	}
	return a.store.Secret(ctx, store.TokenSecretKey)
}

func runServe(args []string) error {
	var configPath string
	fs := newFlagSet("serve", &configPath)
	if err := parse(fs, args); err != nil {
		return err
	}

	a, err := open(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := a.secret(ctx)
	if err != nil {
		return fmt.Errorf("loading token secret: %w", err)
	}

	media, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return fmt.Errorf("opening media store: %w", err)
	}
	slog.Info("media store ready", "driver", media.Driver())

	var extractor receipt.Extractor
	if a.cfg.Receipt.OpenAIAPIKey != "" {
		extractor, err = receipt.NewOpenAI(a.cfg.Receipt.OpenAIAPIKey, a.cfg.Receipt.Model)
		if err != nil {
			return fmt.Errorf("setting up receipt extraction: %w", err)
		}
		slog.Info("receipt extraction enabled", "model", a.cfg.Receipt.Model)
	}

	router := api.NewRouter(api.Deps{
		Items:    a.items,
		Taxonomy: taxonomy.New(a.store, a.audit),
		Audit:    a.audit,
		Importer: a.importer,
		Media:    media,
		Receipts: extractor,
		Metrics:  a.metrics,
		Settings: a.live,
		URLs:     a.urls,
		Images:   imaging.Options{MaxDimension: a.cfg.Images.MaxDimension, Quality: a.cfg.Images.Quality},

		Secret:      secret,
		Revocations: a.store,
	})

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Reload runtime settings on SIGHUP.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			s, err := a.live.Reload()
			if err != nil {
				slog.Error("reloading settings", "error", err)
				continue
			}
			slog.Info("settings reloaded", "items_per_page", s.ItemsPerPage, "max_import_bytes", s.MaxImportBytes)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", a.cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func runImport(args []string) error {
	var configPath, path, actor string
	fs := newFlagSet("import", &configPath)
	fs.StringVar(&path, "file", "", "")
	fs.StringVar(&path, "f", "", "")
	fs.StringVar(&actor, "actor", "cli", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	if path == "" {
		return errors.New("-file is required")
	}

	a, err := open(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = audit.WithActor(ctx, actor)

	source := filepath.Base(path)
	var result *model.ImportResult
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		result, err = a.importer.ImportXLSX(ctx, f, source)
	} else {
		result, err = a.importer.ImportCSV(ctx, f, source)
	}
	if result != nil {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	}
	return err
}

func runToken(args []string) error {
	var configPath, actor, revoke string
	var ttl time.Duration
	fs := newFlagSet("token", &configPath)
	fs.StringVar(&actor, "actor", "", "")
	fs.DurationVar(&ttl, "ttl", auth.TokenExpiry, "")
	fs.StringVar(&revoke, "revoke", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	a, err := open(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	secret, err := a.secret(ctx)
	if err != nil {
		return fmt.Errorf("loading token secret: %w", err)
	}

	if revoke != "" {
		claims, err := auth.ValidateToken(secret, revoke)
		if err != nil {
			return err
		}
		if err := a.store.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
		slog.Info("actor token revoked", "actor", claims.Actor, "jti", claims.ID)
		return nil
	}

	token, err := auth.GenerateToken(secret, actor, ttl)
	if err != nil {
		return err
	}
	slog.Info("actor token issued", "actor", actor, "ttl", ttl)
	fmt.Println(token)
	return nil
}
