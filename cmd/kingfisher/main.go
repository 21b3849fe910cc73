package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harwoodlabs/kingfisher/config"
	"github.com/harwoodlabs/kingfisher/internal/planner"
	srv "github.com/harwoodlabs/kingfisher/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "kingfisher"}

	var cfgPath string
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the guide chat HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	var schema = &cobra.Command{
		Use:   "schema",
		Short: "Print the plan JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(planner.SchemaJSON())
			return nil
		},
	}

	root.AddCommand(serve, schema)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
