package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsettle-go/settlement"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [release-id buyer-id]",
		Short: "Show one escrow entry and access grant, or list open entries",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withEngine(func(s *session) error {
				if len(args) == 0 {
					entries, err := s.eng.Entries()
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						fmt.Fprintln(out, "No open escrow entries")
						return nil
					}
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						rows = append(rows, []string{e.ReleaseID, e.BuyerID, e.State(), e.Flags.String(), strconv.FormatUint(e.Total, 10)})
					}
					fmt.Fprint(out, renderTable(
						[]string{"Release", "Buyer", "State", "Flags", "Total"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					))
					return nil
				}

				found := false
				entry, err := s.eng.Entry(args[0], args[1])
				switch {
				case err == nil:
					found = true
					rows := [][]string{
						{"address", entry.Address.String()},
						{"state", entry.State()},
						{"flags", entry.Flags.String()},
						{"delivery", entry.Delivery.String()},
						{"fee", strconv.FormatUint(entry.Fee, 10)},
						{"total", strconv.FormatUint(entry.Total, 10)},
						{"custody", entry.Custody.String()},
						{"purchased", formatUnix(entry.PurchaseDate)},
					}
					if entry.Collectible != "" {
						rows = append(rows, []string{"collectible", string(entry.Collectible)})
					}
					fmt.Fprint(out, renderTable([]string{"Escrow", ""}, rows, nil))
					splitRows := make([][]string, 0, len(entry.Splits))
					for i, sp := range entry.Splits {
						splitRows = append(splitRows, []string{strconv.Itoa(i), sp.Recipient.String(), sp.RewardRecipient.String(), strconv.FormatUint(sp.Amount, 10)})
					}
					fmt.Fprint(out, renderTable(
						[]string{"#", "Recipient", "Reward recipient", "Amount"},
						splitRows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
					))
				case !errors.Is(err, settlement.ErrNotFound):
					return err
				}

				grant, err := s.eng.Grant(args[0], args[1])
				switch {
				case err == nil:
					found = true
					rows := [][]string{
						{"address", grant.Address.String()},
						{"kind", grant.Kind.String()},
						{"rights", grant.Rights.String()},
						{"created", formatUnix(grant.CreatedAt)},
						{"expires", formatUnix(grant.ExpiresAt)},
					}
					fmt.Fprint(out, renderTable([]string{"Access grant", ""}, rows, nil))
				case !errors.Is(err, settlement.ErrNotFound):
					return err
				}

				if !found {
					return fmt.Errorf("%w: no escrow entry or access grant for %s/%s", settlement.ErrNotFound, args[0], args[1])
				}
				return nil
			})
		},
	}
}

func newBalancesCommand(ctx *commandContext) *cobra.Command {
	var asset string
	var all bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "List ledger holders and balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				holders, err := s.eng.Holders()
				if err != nil {
					return err
				}
				refs := s.eng.OperatorRefs()
				labels := map[string]string{
					refs.Fee.String():                         "operator fee",
					refs.Native.String():                      "operator native",
					refs.CreatorReward.String():               "operator creator reward",
					refs.Reserve.String():                     "storage reserve",
					s.eng.AdminRef(s.admin.PubKey()).String(): "administrator",
				}
				sort.Slice(holders, func(i, j int) bool {
					if holders[i].Asset != holders[j].Asset {
						return holders[i].Asset < holders[j].Asset
					}
					return holders[i].Balance > holders[j].Balance
				})
				rows := make([][]string, 0, len(holders))
				for _, h := range holders {
					if asset != "" && string(h.Asset) != asset {
						continue
					}
					if !all && h.Balance == 0 {
						continue
					}
					rows = append(rows, []string{string(h.Asset), h.Ref.String(), labels[h.Ref.String()], strconv.FormatUint(h.Balance, 10)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No balances")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Asset", "Ref", "Holder", "Balance"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "Only show holders of this asset")
	cmd.Flags().BoolVar(&all, "all", false, "Include empty holders")
	return cmd
}

func newDepositsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deposits",
		Short: "List outstanding storage-deposit line items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				items, err := s.eng.LineItems()
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No outstanding deposits")
					return nil
				}
				var total uint64
				rows := make([][]string, 0, len(items)+1)
				for _, it := range items {
					total += it.Deposit
					rows = append(rows, []string{string(it.Kind), it.Record, strconv.Itoa(it.Size), strconv.FormatUint(it.Deposit, 10), formatUnix(it.CreatedAt)})
				}
				rows = append(rows, []string{"total", "", "", strconv.FormatUint(total, 10), ""})
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Kind", "Record", "Size", "Deposit", "Reserved"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
