package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandeepkv93/sitedeck/internal/di"
)

func main() {
	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
