// Copyright (C) 2025 duggavo
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pglimiter/cfg"
	"pglimiter/config"
	"pglimiter/database"
	"pglimiter/limiter"
	"pglimiter/log"
	"pglimiter/panel"
)

var DB *database.DB
var Panel *panel.Client
var Eng *limiter.Engine

func main() {
	err := cfg.Load()

	// the webhook may already be usable even when validation failed,
	// so the operator hears about config problems
	startDiscord()

	panel.OnAlert = sendAlert
	limiter.OnAlert = sendAlert
	limiter.OnEvent = onEvent

	for err != nil {
		log.Err("configuration:", err)
		sendAlert(fmt.Sprintf("configuration error: %s - retrying in %d seconds", err, config.CONFIG_RETRY_INTERVAL))

		time.Sleep(config.CONFIG_RETRY_INTERVAL * time.Second)

		err = cfg.Load()
		if err == nil {
			startDiscord()
		}
	}

	log.Info("configuration loaded, panel:", cfg.Cfg.Panel.Domain)

	DB, err = database.Open(cfg.Cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer DB.Close()

	Panel = panel.NewClient(cfg.Cfg.Panel.Domain, cfg.Cfg.Panel.Username, cfg.Cfg.Panel.Password)
	Eng = limiter.NewEngine(Panel, DB)

	go StartApiServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restarts := 0
	for {
		// pick up punishment state left over by a previous run before
		// any polling starts
		Eng.Scheduler.Recover()

		log.Info("enforcement engine running")
		err := Eng.Run(ctx)

		if ctx.Err() != nil {
			log.Info("shutting down")
			return
		}

		restarts++
		if err == nil {
			err = fmt.Errorf("engine stopped without a cause")
		}

		log.Errf("engine failed (restart #%d): %s", restarts, err)
		sendAlert(fmt.Sprintf("engine failed: %s - restarting in %d seconds", err, config.RESTART_DELAY))

		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-time.After(config.RESTART_DELAY * time.Second):
		}
	}
}
