package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	resetpwcmd "github.com/vereinswerk/portal/internal/cmd/resetpw"
	"github.com/vereinswerk/portal/internal/platform/config"
)

func main() {
	cfg, err := resetpwcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[RESETPW] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := resetpwcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to reset password: %v", err)
	}
}
