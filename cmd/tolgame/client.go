package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tolelom/tolgame/config"
	"github.com/tolelom/tolgame/core"
	"github.com/tolelom/tolgame/ledgergrpc"
	"github.com/tolelom/tolgame/logging"
	"github.com/tolelom/tolgame/orchestrator"
	"github.com/tolelom/tolgame/wallet"
)

var (
	nodeAddr   string
	assumeYes  bool
	keystoreAt string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&nodeAddr, "node", "", "ledger gRPC address (default: client.node_addr from config)")
	rootCmd.PersistentFlags().StringVar(&keystoreAt, "keystore", "", "keystore file (default: client.keystore from config)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "sign without asking for confirmation")
}

// dial connects to the configured ledger.
func dial(ctx context.Context) (*ledgergrpc.Client, error) {
	addr := cfg.Client.NodeAddr
	if nodeAddr != "" {
		addr = nodeAddr
	}
	creds := insecure.NewCredentials()
	tlsCfg, err := config.LoadTLSConfig(&cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	}
	return ledgergrpc.Dial(ctx, addr, cfg.Client.AuthToken, grpc.WithTransportCredentials(creds))
}

// session is a connected client with the user's signing key.
type session struct {
	chain  *ledgergrpc.Client
	wallet *wallet.Wallet
	orch   *orchestrator.Orchestrator
}

func openSession(cmd *cobra.Command) (*session, error) {
	path := cfg.Client.Keystore
	if keystoreAt != "" {
		path = keystoreAt
	}
	priv, err := wallet.LoadKey(path, password())
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	chain, err := dial(cmd.Context())
	if err != nil {
		return nil, err
	}
	var confirm wallet.ConfirmFunc
	if !assumeYes {
		confirm = prompt(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	w := wallet.New(priv, confirm)
	return &session{
		chain:  chain,
		wallet: w,
		orch: orchestrator.New(chain, w, orchestrator.Options{
			Identity:          w.PubKey(),
			Params:            cfg.Params,
			MaxSubmitAttempts: cfg.Client.MaxSubmitAttempts,
			RetryBackoff:      cfg.Client.RetryBackoff,
			Log:               logs.Logger(logging.Orchestrator),
		}),
	}, nil
}

func (s *session) Close() error { return s.chain.Close() }

// prompt shows the transaction and asks before signing.
func prompt(in io.Reader, out io.Writer) wallet.ConfirmFunc {
	r := bufio.NewReader(in)
	return func(_ context.Context, tx *core.UnsignedTx) error {
		fmt.Fprintf(out, "Action: %s\n", tx.Action)
		for i, b := range tx.Inputs {
			fmt.Fprintf(out, "  in  %d: %s (%d)\n", i, b.ID, b.Value)
		}
		for i, b := range tx.Outputs {
			fmt.Fprintf(out, "  out %d: %d to %s\n", i, b.Value, short(string(b.Address())))
		}
		fmt.Fprintf(out, "Fee: %d\nSign and submit? [y/N] ", tx.Fee)
		line, _ := r.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return nil
		default:
			return core.ErrUserCancelled
		}
	}
}

func short(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[:10] + "…" + s[len(s)-8:]
}
