package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var dataDirFlag string
	var configFlag string
	var passphraseFlag string

	ctx := newCommandContext(&dataDirFlag, &configFlag, &passphraseFlag)

	rootCmd := &cobra.Command{
		Use:           "settle",
		Short:         "Release purchase settlement ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dataDirFlag, "data-dir", "d", "", "Data directory (default ~/.settle)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&passphraseFlag, "passphrase", "", "Key file passphrase (default $"+passphraseEnv+")")

	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newAdminCommand(ctx))
	rootCmd.AddCommand(newAccountCommand(ctx))
	rootCmd.AddCommand(newCreditCommand(ctx))
	for _, cmd := range newEscrowCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newPurchaseAccessCommand(ctx))
	rootCmd.AddCommand(newCloseGrantCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newBalancesCommand(ctx))
	rootCmd.AddCommand(newDepositsCommand(ctx))

	return rootCmd
}
