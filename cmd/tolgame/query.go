package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tolelom/tolgame/crypto"
	"github.com/tolelom/tolgame/game"
	"github.com/tolelom/tolgame/wallet"
)

var balanceAddr string

func init() {
	balanceCmd.Flags().StringVar(&balanceAddr, "address", "", "address to inspect (default: the keystore identity)")
	rootCmd.AddCommand(heightCmd, balanceCmd, boxCmd, showGameCmd)
}

var heightCmd = &cobra.Command{
	Use:   "height",
	Short: "Print the ledger tip height",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		h, err := c.CurrentHeight(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "List the unspent boxes of an address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := crypto.Address(balanceAddr)
		if addr == "" {
			path := cfg.Client.Keystore
			if keystoreAt != "" {
				path = keystoreAt
			}
			priv, err := wallet.LoadKey(path, password())
			if err != nil {
				return err
			}
			addr = priv.Public().Address()
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		raws, err := c.UnspentOutputsFor(cmd.Context(), addr)
		if err != nil {
			return err
		}
		var total uint64
		out := cmd.OutOrStdout()
		for _, r := range raws {
			total += r.Value
			fmt.Fprintf(out, "%s %d\n", r.ID, r.Value)
		}
		fmt.Fprintf(out, "total %d in %d boxes\n", total, len(raws))
		return nil
	},
}

var boxCmd = &cobra.Command{
	Use:   "box <id>",
	Short: "Print an unspent box",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		raw, err := c.BoxByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, raw)
	},
}

var showGameCmd = &cobra.Command{
	Use:   "show-game <nft>",
	Short: "Print the current state of a game and its participations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		raw, err := c.GameBoxByNFT(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		g, err := game.DecodeGameRaw(raw)
		if err != nil {
			return err
		}
		parts, err := c.ParticipationsByNFT(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := struct {
			Game           *game.Game            `json:"game"`
			Status         string                `json:"status"`
			Participations []*game.Participation `json:"participations"`
			RefundTo       map[string]string     `json:"refund_to,omitempty"`
		}{Game: g, Status: g.Status.String(), RefundTo: make(map[string]string)}
		for _, p := range parts {
			dp, err := game.DecodeParticipationRaw(p)
			if err != nil {
				log.Warnf("Skipping participation %s: %v", p.ID, err)
				continue
			}
			view.Participations = append(view.Participations, dp)
			view.RefundTo[p.ID] = string(game.RefundAddress(dp))
		}
		return printJSON(cmd, view)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
