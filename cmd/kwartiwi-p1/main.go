package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/config"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/discovery"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/log"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/predictor"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/serialport"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/server"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/store"
)

// Version is overridden at build-time.
var Version = "dev"

func main() {
	host := flag.String("host", "0.0.0.0", "bind address for the HTTP API")
	port := flag.Int("port", 80, "TCP port for the HTTP API")
	device := flag.String("device", "/dev/ttyUSB0", "P1 serial device")
	staticDir := flag.String("static-dir", "./web", "directory serving the UI bundle")
	configPath := flag.String("config", "./kwartiwi-p1.db", "path to the persisted configuration store")
	showVer := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "kwartiwi-p1 %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVer {
		fmt.Printf("kwartiwi-p1 %s\n", Version)
		os.Exit(0)
	}

	log.Logger = log.Logger.Level(zerolog.InfoLevel).With().Str("version", Version).Logger()

	cfgStore, err := config.Open(*configPath)
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("opening configuration store")
	}
	defer cfgStore.Close()

	settings, err := cfgStore.Load()
	if err != nil {
		settings = config.Defaults()
		if err := cfgStore.Save(settings); err != nil {
			log.Logger.Fatal().Err(err).Msg("persisting default configuration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(store.DefaultShortTermCapacity, store.DefaultLongTermCapacity)

	reader, err := serialport.Open(serialport.Config{Device: *device}, st)
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("opening P1 serial port")
	}
	defer reader.Close()
	go func() {
		if err := reader.Run(ctx); err != nil && ctx.Err() == nil {
			log.Logger.Error().Err(err).Msg("P1 reader exited")
		}
	}()

	pred := predictor.New(st, settings.PredictorMethod, predictor.DefaultInterval)
	go pred.Run(ctx)

	ad, err := discovery.Advertise(settings.MDNSInstance, settings.Hostname, *port)
	if err != nil {
		log.Logger.Error().Err(err).Msg("mDNS advertisement failed; continuing without discovery")
	} else {
		defer ad.Close()
	}

	srv := server.New(server.Config{
		Store:           st,
		StaticDir:       *staticDir,
		FirmwareVersion: Version,
	})
	addr := fmt.Sprintf("%s:%d", *host, *port)
	if err := srv.Run(ctx, addr); err != nil {
		log.Logger.Fatal().Err(err).Msg("fatal")
	}
	log.Logger.Info().Msg("shutdown complete")
}
