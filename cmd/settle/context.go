package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/config"
	"github.com/bitfsorg/libsettle-go/keys"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/settlement"
	"github.com/bitfsorg/libsettle-go/store"
)

const (
	passphraseEnv = "SETTLE_PASSPHRASE"

	seedFileName  = "operator.seed"
	adminFileName = "admin.key"
	dbFileName    = "settle.db"
)

type commandContext struct {
	dataDirFlag    *string
	configFlag     *string
	passphraseFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(dataDirFlag, configFlag, passphraseFlag *string) *commandContext {
	return &commandContext{
		dataDirFlag:    dataDirFlag,
		configFlag:     configFlag,
		passphraseFlag: passphraseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		dataDir := strings.TrimSpace(*c.dataDirFlag)
		if dataDir == "" {
			dataDir = config.DefaultDataDir()
		}
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			path = config.ConfigPath(dataDir)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if strings.TrimSpace(*c.dataDirFlag) != "" {
			cfg.DataDir = dataDir
		}
		c.config = &cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) passphrase() string {
	if p := *c.passphraseFlag; p != "" {
		return p
	}
	return os.Getenv(passphraseEnv)
}

func (c *commandContext) path(name string) string {
	return filepath.Join(c.config.DataDir, name)
}

// session is an open engine acting as the local administrator.
type session struct {
	cfg   *config.Config
	eng   *settlement.Engine
	admin *ec.PrivateKey
}

func (c *commandContext) withEngine(fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	seed, err := keys.ReadSeedFile(c.path(seedFileName), c.passphrase())
	if err != nil {
		if errors.Is(err, keys.ErrSeedFileNotFound) {
			return fmt.Errorf("%w; run `settle init` first", err)
		}
		return err
	}
	kr, err := keys.NewKeyring(seed)
	if err != nil {
		return err
	}
	adminKey, err := keys.ReadSeedFile(c.path(adminFileName), c.passphrase())
	if err != nil {
		return fmt.Errorf("load administrator key: %w", err)
	}
	admin, _ := ec.PrivateKeyFromBytes(adminKey)

	logger, err := config.NewLogger(*cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(c.path(dbFileName))
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := settlement.New(db, kr, engineOptions(*cfg, logger))
	if err != nil {
		return err
	}
	return fn(&session{cfg: cfg, eng: eng, admin: admin})
}

func engineOptions(cfg config.Config, logger *zap.Logger) settlement.Options {
	opts := settlement.Options{
		Assets: settlement.Assets{
			Payment:  ledger.AssetID(cfg.Assets.Payment),
			Listener: ledger.AssetID(cfg.Assets.ListenerReward),
			Creator:  ledger.AssetID(cfg.Assets.CreatorReward),
			Native:   ledger.AssetID(cfg.Assets.Native),
		},
		Rate:      cfg.Storage,
		Rewards:   cfg.Rewards,
		MaxSplits: cfg.Escrow.MaxSplits,
		Logger:    logger,
	}
	if cfg.DNS.DNSSEC {
		opts.Resolver = accounts.NewDNSSECResolver(cfg.DNS.Upstream)
	}
	return opts
}
