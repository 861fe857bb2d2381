package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "product-api",
	Short: "Product management API over a document store and a relational store",
	Long: `product-api serves the same product resource from two backends:

  /api/nosql/products  MongoDB collection "products"
  /api/sql/products    PostgreSQL table "products"

Settings are read from the environment and an optional .env file.
Running without a subcommand is the same as "serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
