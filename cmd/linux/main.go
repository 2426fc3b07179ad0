// Drivekeeper Core
// Copyright (c) 2026 The Drivekeeper Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Drivekeeper Core.
//
// Drivekeeper Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Drivekeeper Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Drivekeeper Core.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drivekeeper/drivekeeper-core/pkg/cli"
	"github.com/drivekeeper/drivekeeper-core/pkg/config"
	"github.com/drivekeeper/drivekeeper-core/pkg/service"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	flag.Parse()

	if err := flags.Pre(os.Stdout); err != nil {
		if errors.Is(err, cli.ErrHandled) {
			return nil
		}
		return err
	}

	cfg, err := flags.Setup(config.BaseDefaults)
	if err != nil {
		return err
	}

	if err := flags.Post(cfg, os.Stdout); err != nil {
		if errors.Is(err, cli.ErrHandled) {
			return nil
		}
		return err
	}

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	log.Info().Msgf("drivekeeper v%s starting", config.AppVersion)

	svc, err := service.Start(cfg, service.Options{})
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		return fmt.Errorf("error starting service: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if *flags.Daemon {
		log.Info().Msg("started in daemon mode")
	}

	select {
	case sig := <-sigs:
		log.Info().Msgf("received %s, stopping", sig)
	case <-svc.Done():
	}

	if err := svc.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return fmt.Errorf("error stopping service: %w", err)
	}
	return nil
}
