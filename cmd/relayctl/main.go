package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/streamring/internal/logging"
	"github.com/danmuck/streamring/internal/relay"
)

func main() {
	configPath := flag.String("config", "", "path to relay config toml")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := relay.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := relay.NewService(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}
