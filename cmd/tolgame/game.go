package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/orchestrator"
)

var (
	gSecret     string
	gDeadline   int64
	gStake      uint64
	gEntryFee   int64
	gJudgeBps   int64
	gCreatorBps int64
	gJudges     []string
	gDetails    string
	gCommit     string
	gWinner     string
	gPayTo      string
)

func init() {
	f := gameCreateCmd.Flags()
	f.StringVar(&gSecret, "secret", "", "game secret (revealed on resolve)")
	f.Int64Var(&gDeadline, "deadline", 0, "last height accepting participations")
	f.Uint64Var(&gStake, "stake", 0, "creator stake locked in the game box")
	f.Int64Var(&gEntryFee, "fee", 0, "participation fee")
	f.Int64Var(&gJudgeBps, "judge-bps", 0, "commission per judge in basis points")
	f.Int64Var(&gCreatorBps, "creator-bps", 0, "creator commission in basis points")
	f.StringSliceVar(&gJudges, "judge", nil, "invited judge public key (hex); repeatable")
	f.StringVar(&gDetails, "details", "", "free-form game description")
	_ = gameCreateCmd.MarkFlagRequired("secret")
	_ = gameCreateCmd.MarkFlagRequired("deadline")

	gameSubmitCmd.Flags().StringVar(&gCommit, "commitment", "", "participation commitment")

	f = gameResolveCmd.Flags()
	f.StringVar(&gSecret, "secret", "", "game secret")
	f.StringVar(&gWinner, "winner", "", "winning participation box id (empty: no winner)")
	f.StringSliceVar(&gJudges, "judge", nil, "public key (hex) of a judge to pay; repeatable")
	_ = gameResolveCmd.MarkFlagRequired("secret")

	gameCancelCmd.Flags().StringVar(&gSecret, "secret", "", "game secret; omit to cancel an expired game")
	gameCancelCmd.Flags().StringVar(&gPayTo, "pay-to", "", "address receiving the drained stake (default: caller)")

	gameCmd.AddCommand(
		gameCreateCmd, gameSubmitCmd, gameResolveCmd, gameCancelCmd, gameDrainCmd,
		participationCmd("refund", "Refund a participation of a cancelled game",
			(*orchestrator.Orchestrator).Refund),
		participationCmd("reclaim-grace", "Reclaim a participation after the grace period",
			(*orchestrator.Orchestrator).ReclaimAfterGrace),
		participationCmd("reclaim-abandoned", "Sweep a participation abandoned after resolution",
			(*orchestrator.Orchestrator).ReclaimAbandoned),
		gameClaimCmd, gameCloseCmd,
	)
	rootCmd.AddCommand(gameCmd)
}

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Run a game lifecycle action",
}

// runAction opens a session, runs fn and prints the transaction id.
func runAction(cmd *cobra.Command, fn func(ctx context.Context, o *orchestrator.Orchestrator) (string, error)) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()
	if cfg.Client.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Client.Timeout)
		defer cancel()
	}
	id, err := fn(ctx, s.orch)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func pubKeys(hexes []string) ([][]byte, error) {
	out := make([][]byte, 0, len(hexes))
	for _, h := range hexes {
		pub, err := crypto.PubKeyFromHex(h)
		if err != nil {
			return nil, err
		}
		out = append(out, pub)
	}
	return out, nil
}

var gameCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		judges, err := pubKeys(gJudges)
		if err != nil {
			return err
		}
		p := orchestrator.ActionParams{
			Secret:           []byte(gSecret),
			Deadline:         gDeadline,
			CreatorStake:     gStake,
			ParticipationFee: gEntryFee,
			PerJudgeBps:      gJudgeBps,
			CreatorBps:       gCreatorBps,
			InvitedJudges:    judges,
			Details:          []byte(gDetails),
		}
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.CreateGame(ctx, p)
		})
	},
}

var gameSubmitCmd = &cobra.Command{
	Use:   "submit <nft>",
	Short: "Join a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.SubmitParticipation(ctx, args[0], []byte(gCommit))
		})
	},
}

var gameResolveCmd = &cobra.Command{
	Use:   "resolve <nft>",
	Short: "Reveal the secret and settle the game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		judges, err := pubKeys(gJudges)
		if err != nil {
			return err
		}
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.Resolve(ctx, args[0], []byte(gSecret), gWinner, judges)
		})
	},
}

var gameCancelCmd = &cobra.Command{
	Use:   "cancel <nft>",
	Short: "Cancel a game and start draining its stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var secret []byte
		if gSecret != "" {
			secret = []byte(gSecret)
		}
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.Cancel(ctx, args[0], secret, crypto.Address(gPayTo))
		})
	},
}

var gameDrainCmd = &cobra.Command{
	Use:   "drain <nft>",
	Short: "Release the next slice of a cancelled game's stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.Drain(ctx, args[0])
		})
	},
}

var gameClaimCmd = &cobra.Command{
	Use:   "claim <participation>",
	Short: "Claim the prize of a winning participation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.ClaimPrize(ctx, args[0])
		})
	},
}

var gameCloseCmd = &cobra.Command{
	Use:   "close <nft>",
	Short: "Close a resolved game and release the resolver stake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
			return o.CloseResolved(ctx, args[0])
		})
	},
}

func participationCmd(use, short string, fn func(*orchestrator.Orchestrator, context.Context, string, string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <nft> <participation>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, func(ctx context.Context, o *orchestrator.Orchestrator) (string, error) {
				return fn(o, ctx, args[0], args[1])
			})
		},
	}
}
