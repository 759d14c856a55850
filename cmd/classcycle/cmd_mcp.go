package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	classmcp "github.com/ajitpratap0/classcycle/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  analyze  analyse inputs and summarise cycles (optionally save to Neo4j)
  cycles   list class or package cycles
  report   render a full XML, JSON or text report
  escape   escape text for XML markup
  runs     list runs stored in Neo4j

If Neo4j is unavailable at startup the server still starts; the runs tool
and analyze with save=true return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			var srv *classmcp.Server
			if noStore {
				srv = classmcp.NewServer(scanOptions(), analyzeOptions(), nil, logger)
			} else {
				st, storeErr := newStore(cmd.Context(), logger)
				if storeErr != nil {
					logger.Error("mcp: failed to connect to store; storage tools will fail",
						"error", storeErr)
				} else {
					defer func() { _ = st.Close() }()
				}
				srv = classmcp.NewServer(scanOptions(), analyzeOptions(), st, logger)
			}

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: classcycle MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not connect to Neo4j")
	return cmd
}
