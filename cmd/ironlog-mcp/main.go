package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/ironlog/internal/logging"
	"github.com/meltforce/ironlog/internal/mcp"
	"github.com/meltforce/ironlog/internal/records"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// ironlog-mcp serves the MCP tools over stdio for desktop assistants,
// reading data from a remote ironlog server.
func main() {
	serverURL := flag.String("server", "", "ironlog server URL (e.g. https://ironlog.tail1234.ts.net)")
	token := flag.String("token", os.Getenv("IRONLOG_TOKEN"), "bearer token (auth.mode jwt); defaults to $IRONLOG_TOKEN")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn or error")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("ironlog-mcp", Version)
		return
	}
	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-mcp -server <URL> [-token T]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Stdout carries the protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.Level(*logLevel)}))

	ds := mcp.NewHTTPClient(*serverURL, *token)
	s := mcp.New(ds, records.DefaultCatalog, Version, log)

	log.Info("serving MCP over stdio", "server", *serverURL)
	if err := server.ServeStdio(s); err != nil {
		log.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}
