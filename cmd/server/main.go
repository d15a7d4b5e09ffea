// Command server runs the WebAuthn relying party's HTTP surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/passkeyrp/webauthn-rp/httpapi"
	"github.com/passkeyrp/webauthn-rp/internal/token"
	"github.com/passkeyrp/webauthn-rp/store"
	"github.com/passkeyrp/webauthn-rp/webauthn"
)

var (
	cfgFile    string
	listenAddr string
	dbPath     string
	useSQLite  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webauthn-rp",
	Short: "WebAuthn relying party HTTP server",
	RunE:  runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: webauthn-rp.* in . or $HOME)")
	rootCmd.Flags().StringVar(&listenAddr, "addr", ":8443", "address to listen on")
	rootCmd.Flags().StringVar(&dbPath, "db", "webauthn.db", "path to the sqlite database file")
	rootCmd.Flags().BoolVar(&useSQLite, "sqlite", true, "use the sqlite-backed stores instead of in-memory ones")

	viper.SetEnvPrefix("WEBAUTHN_RP")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("listen.addr", rootCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("storage.sqlite_path", rootCmd.Flags().Lookup("db"))
}

func initViper() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		viper.SetConfigName("webauthn-rp")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("reading config file: %w", err)
			}
		}
	}
	return nil
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := initViper(); err != nil {
		return err
	}

	var cfg webauthn.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling configuration: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		challenges  webauthn.ChallengeStore
		credentials webauthn.CredentialStore
		users       webauthn.UserStore
	)
	challengeTTL := viper.GetDuration("storage.challenge_ttl")
	if challengeTTL == 0 {
		challengeTTL = 5 * time.Minute
	}

	if useSQLite {
		path := viper.GetString("storage.sqlite_path")
		if path == "" {
			path = dbPath
		}
		db, err := store.Open(ctx, path, challengeTTL, logger)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		defer db.Close()
		challenges, credentials, users = db.Challenges(), db.Credentials(), db.Users()
	} else {
		challenges = store.NewMemoryChallengeStore(challengeTTL)
		credentials = store.NewMemoryCredentialStore()
		users = store.NewMemoryUserStore()
	}

	metrics := webauthn.NewMetrics(prometheus.DefaultRegisterer)

	rp := &webauthn.RelyingParty{
		Config:                      cfg,
		RejectUnsolicitedExtensions: cfg.RejectUnsolicitedExtensions,
		Logger:                      logger,
		Metrics:                     metrics,
	}

	options := &webauthn.OptionsGenerator{Config: cfg}

	var issuer *token.Issuer
	if secret := viper.GetString("token.secret"); secret != "" {
		issuer = &token.Issuer{
			Secret: []byte(secret),
			Issuer: cfg.RPID,
			TTL:    24 * time.Hour,
		}
	}

	handler := &httpapi.Handler{
		RP:               rp,
		Options:          options,
		Challenges:       challenges,
		Credentials:      credentials,
		Users:            users,
		Tokens:           issuer,
		Logger:           logger,
		LoginRedirectURL: viper.GetString("login.redirect_url"),
		LoginErrorURL:    viper.GetString("login.error_url"),
	}

	router := httpapi.NewRouter(handler)

	addr := viper.GetString("listen.addr")
	if addr == "" {
		addr = listenAddr
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server exited: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}
