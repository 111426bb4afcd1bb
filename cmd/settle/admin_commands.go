package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsettle-go/settlement"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the administrator roster",
	}

	adminCmd.AddCommand(newAdminAddCommand(ctx))
	adminCmd.AddCommand(newAdminRemoveCommand(ctx))
	adminCmd.AddCommand(newAdminListCommand(ctx))

	return adminCmd
}

func newAdminAddCommand(ctx *commandContext) *cobra.Command {
	var comp uint64
	cmd := &cobra.Command{
		Use:   "add <pubkey>",
		Short: "Add an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parsePubKey(args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.AddAdmin(cmd.Context(), s.admin, key, comp)
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

func newAdminRemoveCommand(ctx *commandContext) *cobra.Command {
	var comp uint64
	cmd := &cobra.Command{
		Use:   "remove <pubkey>",
		Short: "Remove an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parsePubKey(args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(s *session) error {
				res, err := s.eng.RemoveAdmin(cmd.Context(), s.admin, key, comp)
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

func newAdminListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List administrators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(s *session) error {
				admins, err := s.eng.Admins()
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(admins))
				for _, a := range admins {
					addedBy := "-"
					if len(a.AddedBy) > 0 {
						addedBy = fmt.Sprintf("%x", a.AddedBy)
					}
					rows = append(rows, []string{a.Hex(), addedBy, formatUnix(a.AddedAt)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Administrator", "Added by", "Added"}, rows, nil))
				return nil
			})
		},
	}
}

func printResult(out io.Writer, res *settlement.Result) {
	fmt.Fprintln(out, res.Message)
	var rows [][]string
	add := func(label string, v uint64) {
		if v != 0 {
			rows = append(rows, []string{label, strconv.FormatUint(v, 10)})
		}
	}
	add("total", res.Total)
	add("paid", res.Paid)
	add("deposits", res.Deposits)
	add("released", res.Released)
	add("reimbursed", res.Reimbursed)
	if len(rows) > 0 {
		fmt.Fprint(out, renderTable([]string{"Amount", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
