package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/auth"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/config"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/database"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/logging"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/mirror"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pawpaw-mirror",
		Short: "Account-scoped mirror service for pawpaw activity records",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newIssueTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyMirrorDefaults(viper.GetViper())
	defaults := config.NewViper()
	config.ApplyMirrorDefaults(defaults)
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Account token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Account token signing secret (overrides env)")
	cmd.PersistentFlags().String("allowed-origins", defaults.GetString("cors.allowed_origins"), "Comma separated CORS origins")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "cors.allowed_origins", "allowed-origins")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newAccountTokens(cfg config.MirrorConfig) (*auth.AccountTokens, error) {
	return auth.NewAccountTokens(auth.AccountTokensConfig{
		SigningSecret: []byte(cfg.SigningSecret),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		TokenTTL:      cfg.TokenTTL,
	})
}

func newIssueTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <account-id>",
		Short: "Mint a bearer token scoping a device to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mirrorConfig, err := config.LoadMirror(viper.GetViper())
			if err != nil {
				return err
			}
			tokens, err := newAccountTokens(mirrorConfig)
			if err != nil {
				return err
			}
			token, expiresAt, err := tokens.Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func runServer(ctx context.Context) error {
	mirrorConfig, err := config.LoadMirror(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(mirrorConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenMirrorStore(mirrorConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck

	tokens, err := newAccountTokens(mirrorConfig)
	if err != nil {
		return err
	}

	repository, err := mirror.NewRepository(mirror.RepositoryConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handler, err := mirror.NewHTTPHandler(mirror.Dependencies{
		Tokens:         tokens,
		Repository:     repository,
		Logger:         logger,
		AllowedOrigins: mirrorConfig.AllowedOrigins,
		Metrics:        mirror.NewMetrics(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              mirrorConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mirror server starting", zap.String("address", mirrorConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
