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
	"time"

	"pglimiter/cfg"
	"pglimiter/limiter"
	"pglimiter/log"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/webhook"
)

var discordWebhook webhook.Client

func startDiscord() {
	if discordWebhook != nil {
		return
	}
	if cfg.Cfg.DiscordWebhook == "" {
		log.Warn("no Discord webhook configured, alerts are log-only")
		return
	}

	wh, err := webhook.NewWithURL(cfg.Cfg.DiscordWebhook)
	if err != nil {
		log.Err("invalid Discord webhook:", err)
		return
	}

	discordWebhook = wh
	log.Info("Discord alert webhook ready")
}

// sendAlert forwards a message to the operator channel. Fire and
// forget: delivery failures are logged and never escalate.
func sendAlert(msg string) {
	if discordWebhook == nil {
		return
	}

	go func() {
		_, err := discordWebhook.CreateContent(msg)
		if err != nil {
			log.Warn("could not deliver alert:", err)
		}
	}()
}

func onEvent(ev limiter.Event) {
	Live.Broadcast(ev)

	if discordWebhook == nil {
		return
	}

	go func() {
		var emb discord.Embed

		if ev.Type == limiter.EVENT_DISABLED {
			emb = discord.NewEmbedBuilder().
				SetTitlef("User %s disabled", ev.Username).
				SetDescriptionf("Step %d, %d distinct IPs, disabled for %s",
					ev.Step, ev.IPCount, (time.Duration(ev.Duration) * time.Second).String()).
				Build()
		} else {
			emb = discord.NewEmbedBuilder().
				SetTitlef("User %s re-enabled", ev.Username).
				Build()
		}

		_, err := discordWebhook.CreateEmbeds([]discord.Embed{emb})
		if err != nil {
			log.Warn("could not deliver event embed:", err)
		}
	}()
}
