package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tolelom/tolgame/crypto/certgen"
	"github.com/tolelom/tolgame/wallet"
)

var (
	keyOut   string
	certDir  string
	certName []string
	certHost []string
)

func init() {
	genkeyCmd.Flags().StringVar(&keyOut, "out", "", "keystore file to write (default: client.keystore from config)")
	gencertsCmd.Flags().StringVar(&certDir, "dir", "./certs", "directory for the CA and issued certificates")
	gencertsCmd.Flags().StringSliceVar(&certName, "name", []string{"ledger", "client"}, "identities to issue")
	gencertsCmd.Flags().StringSliceVar(&certHost, "host", nil, "extra IP or DNS names for the certificates")
	rootCmd.AddCommand(genkeyCmd, gencertsCmd)
}

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a key pair into an encrypted keystore",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := keyOut
		if path == "" {
			path = cfg.Client.Keystore
		}
		w, err := wallet.Generate()
		if err != nil {
			return err
		}
		if err := wallet.SaveKey(path, password(), w.PrivKey()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Public key: %s\n", w.PubKey().Hex())
		fmt.Fprintf(out, "Address:    %s\n", w.Address())
		fmt.Fprintf(out, "Saved to:   %s\n", path)
		return nil
	},
}

var gencertsCmd = &cobra.Command{
	Use:   "gencerts",
	Short: "Generate a CA and mutual TLS certificates for the ledger transport",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := &certgen.Options{}
		for _, h := range certHost {
			if ip := net.ParseIP(h); ip != nil {
				opts.ExtraIPs = append(opts.ExtraIPs, ip)
			} else {
				opts.ExtraDNS = append(opts.ExtraDNS, h)
			}
		}
		b, err := certgen.GenerateAll(certDir, certName, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "CA: %s\nIssued: %s\n", b.CACert, strings.Join(certName, ", "))
		return nil
	},
}
