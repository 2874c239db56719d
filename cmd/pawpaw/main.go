package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/config"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/credential"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/database"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/logging"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/persistence"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/preferences"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand(newCLIRuntime()).Execute(); err != nil {
		os.Exit(1)
	}
}

// cliRuntime carries the process-wide collaborators that tests replace.
type cliRuntime struct {
	viper       *viper.Viper
	cfgFile     string
	now         func() time.Time
	confirm     confirmFunc
	openKeyring func(dir string) (*credential.Store, error)
}

func newCLIRuntime() *cliRuntime {
	return &cliRuntime{
		viper:       config.NewViper(),
		now:         time.Now,
		confirm:     confirmWithPrompt,
		openKeyring: credential.Open,
	}
}

func newRootCommand(rt *cliRuntime) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pawpaw",
		Short:         "Log and review your pet's daily activities",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.initConfig()
		},
	}

	rt.setupFlags(rootCmd)
	rootCmd.AddCommand(
		newRecordCommand(rt),
		newAddCommand(rt),
		newEditCommand(rt),
		newRemoveCommand(rt),
		newClearCommand(rt),
		newListCommand(rt),
		newLastCommand(rt),
		newStatsCommand(rt),
		newSyncCommand(rt),
	)
	return rootCmd
}

func (rt *cliRuntime) setupFlags(cmd *cobra.Command) {
	config.ApplyAppDefaults(rt.viper)
	defaults := config.NewViper()
	config.ApplyAppDefaults(defaults)
	cmd.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("data-dir", defaults.GetString("data.dir"), "Directory holding the database and preferences")
	cmd.PersistentFlags().String("database-path", "", "SQLite database path (defaults under data-dir)")
	cmd.PersistentFlags().String("preferences-path", "", "Preferences file path (defaults under data-dir)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("mirror-url", "", "Mirror service base URL")
	cmd.PersistentFlags().Duration("mirror-timeout", defaults.GetDuration("mirror.timeout"), "Timeout for each mirror request")
	cmd.PersistentFlags().Duration("purge-timeout", defaults.GetDuration("sync.purge_timeout"), "Upper bound for the mirror purge when disabling sync")
	cmd.PersistentFlags().String("timezone", defaults.GetString("stats.timezone"), "IANA timezone for days and hours (Local for the system zone)")

	rt.bindFlag(cmd, "data.dir", "data-dir")
	rt.bindFlag(cmd, "database.path", "database-path")
	rt.bindFlag(cmd, "preferences.path", "preferences-path")
	rt.bindFlag(cmd, "log.level", "log-level")
	rt.bindFlag(cmd, "mirror.url", "mirror-url")
	rt.bindFlag(cmd, "mirror.timeout", "mirror-timeout")
	rt.bindFlag(cmd, "sync.purge_timeout", "purge-timeout")
	rt.bindFlag(cmd, "stats.timezone", "timezone")
}

func (rt *cliRuntime) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := rt.viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (rt *cliRuntime) initConfig() error {
	if rt.cfgFile == "" {
		return nil
	}
	rt.viper.SetConfigFile(rt.cfgFile)
	return rt.viper.ReadInConfig()
}

// app is the explicit context object every command runs against.
type app struct {
	config      config.AppConfig
	logger      *zap.Logger
	db          *gorm.DB
	store       *activities.Store
	controller  *persistence.Controller
	preferences *preferences.File
	credentials *credential.Store
	out         io.Writer
	now         func() time.Time
	confirm     confirmFunc
}

func (rt *cliRuntime) openApp(ctx context.Context, out io.Writer) (*app, error) {
	appConfig, err := config.LoadApp(rt.viper)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewConsoleLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	prefs, err := preferences.Open(appConfig.PreferencesPath)
	if err != nil {
		return nil, err
	}

	credentials, err := rt.openKeyring(appConfig.KeyringDir)
	if err != nil {
		logger.Warn("keyring unavailable, mirror token limited to configuration", zap.Error(err))
		credentials = nil
	}

	db, err := database.OpenRecordStore(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	factory, err := persistence.NewFactory(persistence.FactoryConfig{
		Database:      db,
		Dial:          persistence.MirrorDialer(appConfig.MirrorURL, tokenSource(appConfig, credentials), appConfig.MirrorTimeout, logger),
		RemoteTimeout: appConfig.MirrorTimeout,
		Logger:        logger,
	})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	store, err := activities.NewStore(ctx, activities.StoreConfig{
		Clock:  rt.now,
		Logger: logger,
	})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	controller, err := persistence.NewController(ctx, persistence.ControllerConfig{
		Store:        store,
		Factory:      factory,
		Preferences:  prefs,
		PurgeTimeout: appConfig.PurgeTimeout,
		Logger:       logger,
	})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return &app{
		config:      appConfig,
		logger:      logger,
		db:          db,
		store:       store,
		controller:  controller,
		preferences: prefs,
		credentials: credentials,
		out:         out,
		now:         rt.now,
		confirm:     rt.confirm,
	}, nil
}

func (a *app) Close() error {
	storeErr := a.store.Close()
	dbErr := database.Close(a.db)
	_ = a.logger.Sync()
	return errors.Join(storeErr, dbErr)
}

// tokenSource prefers a configured token over the keyring.
func tokenSource(cfg config.AppConfig, credentials *credential.Store) func() (string, error) {
	return func() (string, error) {
		if cfg.MirrorToken != "" {
			return cfg.MirrorToken, nil
		}
		if credentials == nil {
			return "", nil
		}
		return credentials.MirrorToken()
	}
}

// withApp opens the app for one command invocation.
func (rt *cliRuntime) withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := rt.openApp(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		events, unsubscribe := a.store.Events().Subscribe(cmd.Context())
		defer unsubscribe()
		runErr := run(cmd, args, a)
		reportSaveFailures(cmd.ErrOrStderr(), events)
		return runErr
	}
}

// reportSaveFailures drains the events published during one command and
// surfaces failed writes.
func reportSaveFailures(out io.Writer, events <-chan activities.Event) {
	for {
		select {
		case event := <-events:
			if event.Type == activities.EventSaveFailed {
				fmt.Fprintln(out, noticeStyle.Render(fmt.Sprintf("Not saved (%s): %v", event.Backend, event.Err)))
			}
		default:
			return
		}
	}
}
