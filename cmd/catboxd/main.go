// Command catboxd runs the IRC daemon: load configuration, start
// listening, and serve connections until asked to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/horgh/ircd/internal/config"
	"github.com/horgh/ircd/internal/ircd"
)

func main() {
	configFile := flag.String("config", "", "Path to the TOML configuration file.")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error.")
	flag.Parse()

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log)

	if *configFile == "" {
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "a -config file is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		entry.WithError(err).Fatal("loading configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig).Info("shutting down")
		cancel()
	}()

	server := ircd.New(cfg, entry)
	if err := server.Run(ctx); err != nil {
		entry.WithError(err).Fatal("server exited with error")
	}

	entry.Info("server shutdown cleanly")
}
