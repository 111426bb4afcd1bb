package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsettle-go/config"
	"github.com/bitfsorg/libsettle-go/keys"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var mnemonic string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the operator seed and administrator key, then initialize the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var seed []byte
			if strings.TrimSpace(mnemonic) != "" {
				seed, err = keys.SeedFromMnemonic(strings.Join(strings.Fields(mnemonic), " "))
			} else {
				seed, err = keys.GenerateSeed()
			}
			if err != nil {
				return err
			}
			admin, err := ec.NewPrivateKey()
			if err != nil {
				return fmt.Errorf("generate administrator key: %w", err)
			}
			if err := keys.WriteSeedFile(ctx.path(seedFileName), seed, ctx.passphrase()); err != nil {
				return err
			}
			if err := keys.WriteSeedFile(ctx.path(adminFileName), admin.Serialize(), ctx.passphrase()); err != nil {
				return err
			}
			cfgPath := config.ConfigPath(cfg.DataDir)
			if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) && *ctx.configFlag == "" {
				if err := config.SaveConfig(cfgPath, *cfg); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote configuration to %s\n", cfgPath)
			}

			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.Initialize(cmd.Context(), s.admin.PubKey())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, res.Message)
				fmt.Fprintf(out, "Administrator: %s\n", hex.EncodeToString(s.admin.PubKey().Compressed()))
				if mnemonic == "" {
					phrase, err := keys.SeedMnemonic(seed)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Operator seed backup phrase (store it offline):\n  %s\n", phrase)
				}
				refs := s.eng.OperatorRefs()
				rows := [][]string{
					{"fee", refs.Fee.String()},
					{"native", refs.Native.String()},
					{"creator reward", refs.CreatorReward.String()},
					{"reserve", refs.Reserve.String()},
				}
				fmt.Fprint(out, renderTable([]string{"Operator holder", "Ref"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "Restore the operator seed from a backup phrase")
	return cmd
}
