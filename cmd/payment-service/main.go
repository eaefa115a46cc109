package main

import (
	"fmt"
	"os"

	"github.com/dmehra2102/checkout-saga/pkg/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "payment-service",
		Short:         "Checkout sessions and Stripe webhooks for the checkout saga",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		return config.Load(config.PaymentService, configFile)
	}
	rootCmd.AddCommand(serveCmd(load), migrateCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
