// Command fhirhosed runs the document intake daemon in the foreground. It is
// the systemd-friendly entrypoint; `fhirhose daemon start` launches the same
// runtime through the CLI binary instead.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/daemonrun"
)

func main() {
	socketPath := flag.String("socket", "", "Path to the IPC socket (defaults to <log_dir>/fhirhose.sock)")
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		SocketPath: *socketPath,
		LogLevel:   *logLevel,
	}); err != nil {
		log.Fatalf("daemon: %v", err)
	}
}
