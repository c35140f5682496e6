package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/transmute/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP session API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = globalCfg.ServerAddr
			}
			deps, err := buildEngine()
			if err != nil {
				return err
			}
			defer deps.close()

			api := &server.APIServer{
				Engine: deps.engine,
				Logger: log.New(os.Stderr, "api ", log.LstdFlags),
			}
			return api.ServeContext(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc",
		Short: "Serve the JSON-RPC session API on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildEngine()
			if err != nil {
				return err
			}
			defer deps.close()

			rpc := &server.RPCServer{
				Engine: deps.engine,
				Logger: log.New(os.Stderr, "rpc ", log.LstdFlags),
			}
			return rpc.ServeStdio(cmd.Context())
		},
	}
}
