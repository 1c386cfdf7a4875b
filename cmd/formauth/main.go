package main

import (
	"context"
	"flag"
	"log"

	"github.com/aussiebroadwan/formauth/internal/cli"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := cli.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	app, err := cli.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer app.Close()

	if err := app.Run(context.Background(), flag.Args()); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}
