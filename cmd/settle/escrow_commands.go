package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsettle-go/collectible"
	"github.com/bitfsorg/libsettle-go/escrow"
	"github.com/bitfsorg/libsettle-go/ledger"
	"github.com/bitfsorg/libsettle-go/settlement"
)

func newCreditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "credit <asset> <ref> <amount>",
		Short: "Mint payment or native funds into a holder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := ledger.ParseRef(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.Credit(cmd.Context(), s.admin, settlement.CreditRequest{
					Asset: ledger.AssetID(args[0]), To: to, Amount: amount,
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

func newEscrowCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newOpenCommand(ctx),
		newFulfillCommand(ctx),
		newCompleteCommand(ctx),
		newCloseCommand(ctx),
	}
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var fee uint64
	var splitFlags []string
	var access, rights, expires string
	var comp uint64

	cmd := &cobra.Command{
		Use:   "open <release-id> <buyer-id>",
		Short: "Lock a buyer's payment in a new escrow entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseSplits(splitFlags)
			if err != nil {
				return err
			}
			now := time.Now()
			req := settlement.OpenRequest{
				ReleaseID:       args[0],
				BuyerID:         args[1],
				Fee:             fee,
				Splits:          table,
				PurchaseDate:    now.Unix(),
				FeeCompensation: comp,
			}
			if access != "" {
				terms, err := parseTerms(access, rights, expires, now)
				if err != nil {
					return err
				}
				req.Access = &terms
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.Open(cmd.Context(), s.admin, req)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().Uint64Var(&fee, "fee", 0, "Platform fee")
	cmd.Flags().StringArrayVar(&splitFlags, "split", nil, "Split as recipient:reward_recipient:amount (repeatable)")
	cmd.Flags().StringVar(&access, "access", "", "Deliver an access grant of this kind (rental|purchase) instead of a collectible")
	cmd.Flags().StringVar(&rights, "rights", "stream", "Access rights (stream,download)")
	cmd.Flags().StringVar(&expires, "expires", "", "Access expiry: RFC 3339 time, duration from now or unix seconds")
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}

func newFulfillCommand(ctx *commandContext) *cobra.Command {
	var meta collectible.Metadata
	var creatorFlags, recipientFlags []string
	var comp uint64

	cmd := &cobra.Command{
		Use:   "fulfill <release-id> <buyer-id>",
		Short: "Pay out an escrow entry and issue its collectible or access grant",
		Long:  "Pay out an escrow entry and issue its collectible or access grant.\nWithout --recipient the entry's own split recipients are used.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creators, err := parseCreators(creatorFlags)
			if err != nil {
				return err
			}
			recipients, err := parseRefs(recipientFlags)
			if err != nil {
				return err
			}
			return ctx.withEngine(func(s *session) error {
				if len(recipients) == 0 {
					entry, err := s.eng.Entry(args[0], args[1])
					if err != nil {
						return err
					}
					for _, sp := range entry.Splits {
						recipients = append(recipients, sp.Recipient)
					}
				}
				res, err := s.eng.Fulfill(cmd.Context(), s.admin, settlement.FulfillRequest{
					ReleaseID:       args[0],
					BuyerID:         args[1],
					Metadata:        meta,
					Creators:        creators,
					RecipientRefs:   recipients,
					FeeCompensation: comp,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&meta.Name, "name", "", "Collectible name")
	cmd.Flags().StringVar(&meta.Symbol, "symbol", "", "Collectible symbol")
	cmd.Flags().StringVar(&meta.URI, "uri", "", "Collectible metadata URI")
	cmd.Flags().Uint16Var(&meta.SellerFeeBasisPoints, "seller-fee-bps", 0, "Secondary sale royalty in basis points")
	cmd.Flags().BoolVar(&meta.IsMutable, "mutable", false, "Allow later metadata updates")
	cmd.Flags().StringArrayVar(&creatorFlags, "creator", nil, "Creator as pubkey:share (repeatable)")
	cmd.Flags().StringArrayVar(&recipientFlags, "recipient", nil, "Expected split recipient ref, in order (repeatable)")
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	var rewardFlags []string
	var comp uint64

	cmd := &cobra.Command{
		Use:   "complete <release-id> <buyer-id>",
		Short: "Issue rewards for a fulfilled entry and close it",
		Long:  "Issue rewards for a fulfilled entry and close it.\nWithout --reward-recipient the entry's own reward recipients are used.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := parseRefs(rewardFlags)
			if err != nil {
				return err
			}
			return ctx.withEngine(func(s *session) error {
				if len(refs) == 0 {
					entry, err := s.eng.Entry(args[0], args[1])
					if err != nil {
						return err
					}
					for _, sp := range entry.Splits {
						refs = append(refs, sp.RewardRecipient)
					}
				}
				res, err := s.eng.Complete(cmd.Context(), s.admin, settlement.CompleteRequest{
					ReleaseID:         args[0],
					BuyerID:           args[1],
					CreatorRewardRefs: refs,
					FeeCompensation:   comp,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				if res.Rewards != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Rewards issued: buyer %d, creators %d, remainder %d\n",
						res.Rewards.Buyer, res.Rewards.Issued()-res.Rewards.Remainder, res.Rewards.Remainder)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&rewardFlags, "reward-recipient", nil, "Expected creator reward ref, in order (repeatable)")
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}

func newCloseCommand(ctx *commandContext) *cobra.Command {
	var comp uint64
	cmd := &cobra.Command{
		Use:   "close <release-id> <buyer-id>",
		Short: "Close an escrow entry, sweeping any locked funds to the operator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.Close(cmd.Context(), s.admin, settlement.CloseRequest{
					ReleaseID: args[0], BuyerID: args[1], FeeCompensation: comp,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}

func newPurchaseAccessCommand(ctx *commandContext) *cobra.Command {
	var fee uint64
	var splitFlags []string
	var kind, rights, expires string
	var comp uint64

	cmd := &cobra.Command{
		Use:   "purchase-access <release-id> <buyer-id>",
		Short: "Sell an access grant directly, paying splits and rewards at once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parseSplits(splitFlags)
			if err != nil {
				return err
			}
			terms, err := parseTerms(kind, rights, expires, time.Now())
			if err != nil {
				return err
			}
			rewardRefs := make([]ledger.Ref, len(table))
			for i, sp := range table {
				rewardRefs[i] = sp.RewardRecipient
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.PurchaseAccess(cmd.Context(), s.admin, settlement.AccessRequest{
					ReleaseID:         args[0],
					BuyerID:           args[1],
					Fee:               fee,
					Splits:            table,
					Terms:             terms,
					CreatorRewardRefs: rewardRefs,
					FeeCompensation:   comp,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().Uint64Var(&fee, "fee", 0, "Platform fee")
	cmd.Flags().StringArrayVar(&splitFlags, "split", nil, "Split as recipient:reward_recipient:amount (repeatable)")
	cmd.Flags().StringVar(&kind, "kind", escrow.GrantPurchase.String(), "Access kind (rental|purchase)")
	cmd.Flags().StringVar(&rights, "rights", "stream", "Access rights (stream,download)")
	cmd.Flags().StringVar(&expires, "expires", "", "Access expiry: RFC 3339 time, duration from now or unix seconds")
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}

func newCloseGrantCommand(ctx *commandContext) *cobra.Command {
	var comp uint64
	cmd := &cobra.Command{
		Use:   "close-grant <release-id> <buyer-id>",
		Short: "Delete an access grant and release its deposit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.CloseAccessGrant(cmd.Context(), s.admin, settlement.CloseGrantRequest{
					ReleaseID: args[0], BuyerID: args[1], FeeCompensation: comp,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&comp, "compensation", 0, "Fee compensation paid to the caller")
	return cmd
}
