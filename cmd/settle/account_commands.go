package main

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsettle-go/accounts"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/settlement"
)

func newAccountCommand(ctx *commandContext) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Provision and edit buyer and artist accounts",
	}

	accountCmd.AddCommand(newAccountProvisionCommand(ctx))
	accountCmd.AddCommand(newAccountCustomRefCommand(ctx))
	accountCmd.AddCommand(newAccountHandleCommand(ctx))
	accountCmd.AddCommand(newAccountWaiverCommand(ctx))
	accountCmd.AddCommand(newAccountListCommand(ctx))

	return accountCmd
}

func newAccountProvisionCommand(ctx *commandContext) *cobra.Command {
	var auth string
	var comp uint64
	cmd := &cobra.Command{
		Use:   "provision <user|artist> <id>",
		Short: "Create an account and its default holders",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := accounts.ParseRole(args[0])
			if err != nil {
				return err
			}
			var authKey *ec.PublicKey
			if auth != "" {
				if authKey, err = parsePubKey(auth); err != nil {
					return err
				}
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.Provision(cmd.Context(), s.admin, settlement.ProvisionRequest{
					Role:            role,
					ID:              args[1],
					Auth:            authKey,
					FeeCompensation: comp,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				fmt.Fprint(cmd.OutOrStdout(), renderAccount(res.Account))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&auth, "auth", "", "Participant wallet key allowed to set custom refs")
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}

func newAccountCustomRefCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "custom-ref <user|artist> <id> <payment|listener|creator> [ref]",
		Short: "Override or clear one reference slot of an account",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := accounts.ParseRole(args[0])
			if err != nil {
				return err
			}
			slot, err := accounts.ParseSlot(args[2])
			if err != nil {
				return err
			}
			var ref ledger.Ref
			if len(args) == 4 {
				if ref, err = ledger.ParseRef(args[3]); err != nil {
					return err
				}
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.SetCustomRef(cmd.Context(), s.admin, settlement.CustomRefRequest{
					Role: role, ID: args[1], Slot: slot, Ref: ref,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newAccountHandleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "handle <artist-id> <alias@domain>",
		Short: "Bind an artist's payment slot to a DNS payout handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.BindPayoutHandle(cmd.Context(), s.admin, settlement.PayoutHandleRequest{ID: args[0], Handle: args[1]})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newAccountWaiverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "waiver <user|artist> <id> <amount>",
		Short: "Record a waived platform fee",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := accounts.ParseRole(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.RecordFeeWaiver(cmd.Context(), s.admin, role, args[1], amount)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newAccountListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				list, err := s.eng.Accounts()
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No accounts")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, a := range list {
					pay, _ := a.Ref(accounts.SlotPayment)
					rows = append(rows, []string{a.Role.String(), a.ID, pay.String(), a.PayoutHandle, fmt.Sprint(a.FeesWaived)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Role", "ID", "Payment ref", "Payout handle", "Fees waived"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func renderAccount(a *accounts.Account) string {
	var rows [][]string
	for _, slot := range a.Role.Slots() {
		ref, err := a.Ref(slot)
		if err != nil {
			continue
		}
		rows = append(rows, []string{slot.String(), ref.String()})
	}
	return renderTable([]string{"Slot", "Ref"}, rows, nil)
}
