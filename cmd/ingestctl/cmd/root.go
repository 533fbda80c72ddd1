// Package cmd implements the ingestctl operator CLI.
package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-ingest/internal/config"
	"ledger-ingest/internal/importlock"
	"ledger-ingest/internal/reconciler"
	"ledger-ingest/internal/repository"
	"ledger-ingest/internal/repository/memstore"
	"ledger-ingest/pkg/logger"
)

const envPrefix = "INGEST"

// Viper keys. Each one can also be set as INGEST_<KEY> with dots replaced by
// underscores, or in the --config file.
const (
	keyDryRun       = "dry_run"
	keyLogLevel     = "log_level"
	keyBatchSize    = "import.batch_size"
	keyMarkupSource = "import.markup_source"
	keySheetSource  = "import.sheet_source"
	keyDBHost       = "db.host"
	keyDBPort       = "db.port"
	keyDBUser       = "db.user"
	keyDBPassword   = "db.password"
	keyDBName       = "db.name"
	keyDBSSLMode    = "db.sslmode"
	keyLockBackend  = "lock.backend"
	keyRedisAddress = "lock.redis_address"
)

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd(viper.New()).Execute()
}

// NewRootCmd builds the command tree around v, so tests can run it in
// isolation.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "ingestctl",
		Short: "Operate the ledger import pipeline",
		Long: `ingestctl runs imports against the ledger database without the HTTP API.

Examples:
  ingestctl migrate up
  ingestctl markup masters.xml vouchers.xml
  ingestctl stage parties.xlsx --type customers
  ingestctl sync 3f0c2a1e-9d7b-4b8e-a1c2-5d6e7f809a1b
  ingestctl stage sales.xlsx --type invoices --sync --dry-run`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return errors.Wrap(err, "read config file")
				}
			}
			v.SetEnvPrefix(envPrefix)
			v.SetEnvKeyReplacer(newKeyReplacer())
			v.AutomaticEnv()
			logger.Init(v.GetString(keyLogLevel))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional)")
	flags.Bool("dry-run", false, "run against an in-memory store; nothing is persisted")
	flags.String("log-level", "warn", "log level")
	flags.Int("batch-size", 0, "rows per committed chunk (default from IMPORT_BATCH_SIZE)")
	_ = v.BindPFlag(keyDryRun, flags.Lookup("dry-run"))
	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(keyBatchSize, flags.Lookup("batch-size"))

	root.AddCommand(
		newMigrateCmd(v),
		newMarkupCmd(v),
		newStageCmd(v),
		newSyncCmd(v),
		newHistoryCmd(v),
	)
	return root
}

// loadConfig starts from the API's environment configuration and applies
// any viper overrides on top.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrideString(v, keyDBHost, &cfg.Database.Host)
	overrideString(v, keyDBPort, &cfg.Database.Port)
	overrideString(v, keyDBUser, &cfg.Database.User)
	overrideString(v, keyDBPassword, &cfg.Database.Password)
	overrideString(v, keyDBName, &cfg.Database.DBName)
	overrideString(v, keyDBSSLMode, &cfg.Database.SSLMode)
	overrideString(v, keyMarkupSource, &cfg.Import.MarkupSource)
	overrideString(v, keySheetSource, &cfg.Import.SheetSource)
	overrideString(v, keyRedisAddress, &cfg.Lock.RedisAddress)
	if s := v.GetString(keyLockBackend); s != "" {
		cfg.Lock.Backend = config.LockBackend(strings.ToLower(s))
	}
	if n := v.GetInt(keyBatchSize); n > 0 {
		cfg.Import.BatchSize = n
	}
	return cfg, nil
}

func newKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

// runtime is the wiring shared by every data command.
type runtime struct {
	cfg    *config.Config
	store  repository.Store
	guard  importlock.Guard
	engine *reconciler.Engine
	close  func()
}

func openRuntime(ctx context.Context, v *viper.Viper) (*runtime, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, engine: reconciler.NewEngine(cfg.Import.BatchSize)}

	if v.GetBool(keyDryRun) {
		mem := memstore.New()
		rt.store = mem
		rt.guard = importlock.NewStoreGuard(mem.Meta())
		rt.close = func() {}
		logger.GetLogger().Info("Dry run: using in-memory store")
		return rt, nil
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.store = repository.NewStore(db)
	guard, closeGuard, err := importlock.New(ctx, cfg.Lock, rt.store.Meta())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	rt.guard = guard
	rt.close = func() {
		_ = closeGuard()
		_ = db.Close()
	}
	return rt, nil
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connect database")
	}
	return db, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
