package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/simp-lee/goboot/internal/app"
	"github.com/simp-lee/goboot/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	checkOnly := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	if err := run(*configPath, *checkOnly, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run loads the configuration and serves until shutdown. With checkOnly it
// reports the validated settings to out and returns.
func run(configPath string, checkOnly bool, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if checkOnly {
		_, err := fmt.Fprintf(out, "config ok: mode=%s addr=%s:%d database=%s auth=%t\n",
			cfg.Server.Mode, cfg.Server.Host, cfg.Server.Port, cfg.Database.Driver, cfg.Auth.Enabled)
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	if err := a.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
