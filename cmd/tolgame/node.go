package main

import (
	"errors"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/tolelom/tolgame/config"
	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/events"
	"github.com/tolelom/tolgame/indexer"
	"github.com/tolelom/tolgame/ledger"
	"github.com/tolelom/tolgame/ledgergrpc"
	"github.com/tolelom/tolgame/logging"
	"github.com/tolelom/tolgame/rpc"
	"github.com/tolelom/tolgame/storage"
	"github.com/tolelom/tolgame/wallet"
)

func init() {
	rootCmd.AddCommand(nodeCmd)
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the single-producer development ledger",
	Args:  cobra.NoArgs,
	RunE:  runNode,
}

func runNode(cmd *cobra.Command, _ []string) error {
	proposer, err := proposerKey(cfg.Node.ProposerKey)
	if err != nil {
		return err
	}
	var collector crypto.PublicKey
	if cfg.Node.FeeCollector != "" {
		if collector, err = crypto.PubKeyFromHex(cfg.Node.FeeCollector); err != nil {
			return err
		}
	}

	db, err := storage.Open(cfg.Node.Backend, filepath.Join(cfg.Node.DataDir, "chain"), logs.Logger(logging.Ledger))
	if err != nil {
		return err
	}
	defer db.Close()

	emitter := events.NewEmitter(log)
	l, err := ledger.New(ledger.Options{
		DB:           db,
		Params:       cfg.Params,
		Proposer:     proposer,
		FeeCollector: collector,
		ChainID:      cfg.Genesis.ChainID,
		Alloc:        cfg.Genesis.Alloc,
		MaxBlockTxs:  cfg.Node.MaxBlockTxs,
		MempoolSize:  cfg.Node.MempoolSize,
		Emitter:      emitter,
		Log:          logs.Logger(logging.Ledger),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx := indexer.New(db, l, emitter, logs.Logger(logging.Indexer))
	if err := idx.Rebuild(ctx); err != nil {
		return err
	}

	opts := []grpc.ServerOption{grpc.UnaryInterceptor(ledgergrpc.TokenAuth(cfg.Node.AuthToken))}
	tlsCfg, err := config.LoadTLSConfig(&cfg.TLS)
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	gs := grpc.NewServer(opts...)
	ledgergrpc.NewServer(l, idx, logs.Logger(logging.GRPC)).Register(gs)
	lis, err := net.Listen("tcp", cfg.Node.GRPCAddr)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Run(cfg.Node.BlockInterval, ctx.Done())
		return nil
	})
	g.Go(func() error {
		log.Infof("gRPC listening on %s (tls=%v)", lis.Addr(), tlsCfg != nil)
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		gs.GracefulStop()
		return nil
	})

	if cfg.Node.RPCAddr != "" {
		rs := rpc.NewServer(cfg.Node.RPCAddr, rpc.NewHandler(l, idx), cfg.Node.AuthToken, logs.Logger(logging.RPC))
		if err := rs.Start(); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return rs.Stop()
		})
	}

	h, _ := l.CurrentHeight(ctx)
	log.Infof("Ledger %s up at height %d, producing every %s", cfg.Genesis.ChainID, h, cfg.Node.BlockInterval)
	err = g.Wait()
	log.Infof("Ledger stopped")
	return err
}

// proposerKey loads the block signing key, creating it on first start.
func proposerKey(path string) (crypto.PrivateKey, error) {
	pw := password()
	priv, err := wallet.LoadKey(path, pw)
	if err == nil {
		return priv, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	w, err := wallet.Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err := wallet.SaveKey(path, pw, w.PrivKey()); err != nil {
		return nil, err
	}
	log.Infof("Created proposer key %s (%s)", path, w.PubKey().Hex())
	return w.PrivKey(), nil
}
