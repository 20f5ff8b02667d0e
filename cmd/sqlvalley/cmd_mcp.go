package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	mcpserver "github.com/felixgeelhaar/sqlvalley/internal/mcp"
)

func newMCPCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the course over the Model Context Protocol",
		Long: `Start an MCP server so an editor or assistant can drive the course.
Uses stdio unless --addr is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				server := mcpserver.NewServer(mcpserver.Config{
					Learner: a.Session,
					Schema:  a.Engine,
					Version: Version,
				})
				if addr != "" {
					a.Logger.Info("serving MCP over HTTP", "addr", addr)
					return server.ServeHTTP(ctx, addr)
				}
				return server.ServeStdio(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Serve over HTTP on this address instead of stdio")
	return cmd
}
