package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"tokentransfer/internal/domain"
)

var (
	deriveOwner string
	deriveMint  string
	deriveKey   string
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Print the holding account address of an owner for a mint",
	RunE:  runDerive,
}

func init() {
	deriveCmd.Flags().StringVar(&deriveOwner, "owner", "", "owner identity (base58)")
	deriveCmd.Flags().StringVar(&deriveMint, "mint", "", "mint address (base58)")
	deriveCmd.Flags().StringVar(&deriveKey, "key", "", "hex derivation key (defaults to the configured key)")
	deriveCmd.MarkFlagRequired("owner")
	deriveCmd.MarkFlagRequired("mint")
}

func runDerive(cmd *cobra.Command, args []string) error {
	owner, err := domain.ParseKey("owner", deriveOwner)
	if err != nil {
		return err
	}
	mint, err := domain.ParseKey("mint", deriveMint)
	if err != nil {
		return err
	}

	var key []byte
	if deriveKey != "" {
		if key, err = hex.DecodeString(deriveKey); err != nil {
			return fmt.Errorf("derivation key is not hex: %w", err)
		}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if key, err = cfg.DerivationKeyBytes(); err != nil {
			return err
		}
	}

	deriver, err := domain.NewAddressDeriver(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), deriver.HoldingAddress(owner, mint))
	return nil
}
