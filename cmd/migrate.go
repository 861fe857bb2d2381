package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/product-api-go/internal/obs"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the relational schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return db.RunMigrations(cfg.PostgresDSN(), obs.NewLogger(os.Stdout, cfg.LogLevel))
	},
}
