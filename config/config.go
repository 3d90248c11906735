package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/storage"
)

// EnvPrefix prefixes environment overrides, e.g. TOLGAME_NODE_DATA_DIR.
const EnvPrefix = "TOLGAME"

// NodeConfig configures the development ledger process.
type NodeConfig struct {
	DataDir       string        `mapstructure:"data_dir" json:"data_dir"`
	Backend       string        `mapstructure:"backend" json:"backend"` // leveldb | badger | memory
	GRPCAddr      string        `mapstructure:"grpc_addr" json:"grpc_addr"`
	RPCAddr       string        `mapstructure:"rpc_addr" json:"rpc_addr"` // empty → JSON-RPC disabled
	AuthToken     string        `mapstructure:"auth_token" json:"auth_token"`
	BlockInterval time.Duration `mapstructure:"block_interval" json:"block_interval"`
	MaxBlockTxs   int           `mapstructure:"max_block_txs" json:"max_block_txs"`
	MempoolSize   int           `mapstructure:"mempool_size" json:"mempool_size"`
	ProposerKey   string        `mapstructure:"proposer_key" json:"proposer_key"`   // keystore file
	FeeCollector  string        `mapstructure:"fee_collector" json:"fee_collector"` // pubkey hex; empty → fees burn
}

// ClientConfig configures the CLI talking to a node.
type ClientConfig struct {
	NodeAddr          string        `mapstructure:"node_addr" json:"node_addr"`
	AuthToken         string        `mapstructure:"auth_token" json:"auth_token"`
	Keystore          string        `mapstructure:"keystore" json:"keystore"`
	MaxSubmitAttempts int           `mapstructure:"max_submit_attempts" json:"max_submit_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
}

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `mapstructure:"chain_id" json:"chain_id"`
	Alloc   map[string]uint64 `mapstructure:"alloc" json:"alloc"` // pubkey hex → initial balance
}

// TLSConfig holds PEM paths for mutual TLS on the gRPC transport. All empty
// means plain TCP.
type TLSConfig struct {
	CACert   string `mapstructure:"ca_cert" json:"ca_cert"`
	NodeCert string `mapstructure:"node_cert" json:"node_cert"`
	NodeKey  string `mapstructure:"node_key" json:"node_key"`
}

// Config holds all node and client configuration.
type Config struct {
	LogLevel string        `mapstructure:"log_level" json:"log_level"`
	Node     NodeConfig    `mapstructure:"node" json:"node"`
	Client   ClientConfig  `mapstructure:"client" json:"client"`
	Params   game.Params   `mapstructure:"params" json:"params"`
	Genesis  GenesisConfig `mapstructure:"genesis" json:"genesis"`
	TLS      TLSConfig     `mapstructure:"tls" json:"tls"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Node: NodeConfig{
			DataDir:       "./data",
			Backend:       storage.BackendLevelDB,
			GRPCAddr:      "127.0.0.1:9650",
			RPCAddr:       "127.0.0.1:8545",
			BlockInterval: 2 * time.Second,
			MaxBlockTxs:   500,
			MempoolSize:   10_000,
			ProposerKey:   "./data/proposer.json",
		},
		Client: ClientConfig{
			NodeAddr:          "127.0.0.1:9650",
			Keystore:          "./keystore.json",
			MaxSubmitAttempts: 3,
			RetryBackoff:      500 * time.Millisecond,
			Timeout:           30 * time.Second,
		},
		Params: game.DefaultParams(),
		Genesis: GenesisConfig{
			ChainID: "tolgame-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Load reads the config file at path (JSON, TOML or YAML by extension) over
// the defaults, then applies TOLGAME_* environment overrides. An empty path
// loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Genesis.Alloc == nil {
		cfg.Genesis.Alloc = map[string]uint64{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every field of def so that environment overrides
// reach keys the file does not mention.
func setDefaults(v *viper.Viper, def *Config) error {
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	for k, val := range tree {
		v.SetDefault(k, val)
	}
	return nil
}

// Validate checks the settings a node or client cannot run without.
func (c *Config) Validate() error {
	switch c.Node.Backend {
	case storage.BackendLevelDB, storage.BackendBadger, storage.BackendMemory:
	default:
		return fmt.Errorf("node.backend: unknown backend %q", c.Node.Backend)
	}
	if c.Node.BlockInterval <= 0 {
		return errors.New("node.block_interval must be positive")
	}
	if c.Genesis.ChainID == "" {
		return errors.New("genesis.chain_id is required")
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
