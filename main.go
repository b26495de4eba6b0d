package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/auth"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/backupcodes"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/config"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/credentials"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/database"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/handlers"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/logger"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/middleware"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/token"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/totp"

	"gorm.io/gorm"
)

// app holds everything a command needs, built once from the configuration.
type app struct {
	cfg    config.Config
	db     *gorm.DB
	hasher password.Hasher
	issuer *totp.Issuer
	codes  *backupcodes.Manager
	store  *credentials.Store
	engine *auth.Engine
}

func newApp(cfg config.Config, logOut io.Writer) (*app, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.Logs.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(slog.New(logger.NewDBHandler(db, logOut, level)))

	hasher, err := password.New(cfg.Hasher())
	if err != nil {
		return nil, err
	}
	issuer := totp.NewIssuer(nil, cfg.TOTPOptions())
	codes := backupcodes.New(db, hasher, cfg.BackupCodeOptions())
	store := credentials.NewStore(db, hasher, issuer, codes, credentials.Options{
		IssuerLabel:     cfg.TOTP.Issuer,
		BackupCodeCount: cfg.BackupCodes.Count,
	})
	engine := auth.NewEngine(store, hasher, issuer, codes, auth.Options{})

	return &app{
		cfg:    cfg,
		db:     db,
		hasher: hasher,
		issuer: issuer,
		codes:  codes,
		store:  store,
		engine: engine,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [-config file] <command> [flags]

Commands:
  serve         run the HTTP API
  register      create a user
  login         check credentials
  backup-codes  issue new backup codes or count the unused ones
  delete        remove a user and their backup codes
  token         issue an admin token for the HTTP API
  genpass       generate a random password
  passphrase    generate a passphrase from a word list
  checkpass     check a password against the complexity policy
  reset-db      drop and recreate every table
`, os.Args[0])
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to a YAML or TOML config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	err := run(*configPath, flag.Arg(0), flag.Args()[1:])
	var fail loginFailed
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		usage()
		os.Exit(2)
	case errors.As(err, &fail):
		os.Exit(1)
	default:
		log.Fatal("Error: ", err)
	}
}

var errUsage = errors.New("unknown command")

func run(configPath, cmd string, args []string) error {
	// These need neither configuration nor a database
	switch cmd {
	case "genpass":
		return runGenpass(args)
	case "passphrase":
		return runPassphrase(args)
	case "checkpass":
		return runCheckpass(args)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd == "serve" {
		return serve(cfg)
	}

	a, err := newApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "register":
		return a.runRegister(args)
	case "login":
		return a.runLogin(args)
	case "backup-codes":
		return a.runBackupCodes(args)
	case "delete":
		return a.runDelete(args)
	case "token":
		return a.runToken(args)
	case "reset-db":
		return a.runResetDB(args)
	default:
		return errUsage
	}
}

func serve(cfg config.Config) error {
	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logger.CleanupOldLogs(ctx, a.db, cfg.Logs.Retention, time.Hour)

	secret := []byte(cfg.Token.Secret)
	if len(secret) == 0 {
		// Tokens issued elsewhere will not verify; admin routes stay closed
		// until TOKEN_SECRET is set.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		slog.Warn("no token secret configured, using an ephemeral one", "source", "main")
	}
	tokens := token.NewManager(secret, cfg.TOTP.Issuer, nil)

	mux := http.NewServeMux()
	h := handlers.New(a.db, a.store, a.engine, a.codes)
	h.BackupCodeCount = cfg.BackupCodes.Count
	h.Routes(mux, tokens)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           middleware.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "source", "main", "listen", cfg.Listen, "tls", cfg.TLS.Enabled)
		if cfg.TLS.Enabled {
			errc <- srv.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("server stopping", "source", "main")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
