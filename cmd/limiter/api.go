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
	"strconv"

	"pglimiter/cfg"
	"pglimiter/config"
	"pglimiter/limiter"
	"pglimiter/log"
	"pglimiter/ratelimit"
	"pglimiter/util"

	"github.com/gin-gonic/gin"
)

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func rateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ratelimit.CanDoAction(c.ClientIP(), ratelimit.ACTION_REQUEST) {
			c.AbortWithStatus(429)
			return
		}
		c.Next()
	}
}

// checkPass guards the admin routes. A wrong password is expensive on
// the rate limiter, so brute forcing bans the IP quickly.
func checkPass(ctx *gin.Context) bool {
	pass := ctx.Param("pass")
	if cfg.Cfg.AdminPass == "" || pass != cfg.Cfg.AdminPass {
		ratelimit.CanDoAction(ctx.ClientIP(), ratelimit.ACTION_BAD_PASS)
		ctx.String(404, "404")
		return false
	}

	ratelimit.CanDoAction(ctx.ClientIP(), ratelimit.ACTION_ADMIN)
	return true
}

func StartApiServer() {
	gin.SetMode("release")
	r := gin.Default()

	r.SetTrustedProxies([]string{
		"127.0.0.1",
	})

	r.Use(cors())
	r.Use(rateLimited())

	r.GET("/ping", func(c *gin.Context) {
		c.String(200, "pong")
	})

	r.GET("/stats", func(c *gin.Context) {
		c.Header("Cache-Control", "max-age=10")

		nodes := Eng.Registry.Current()

		limiter.LastTick.RLock()
		tick := gin.H{
			"time":       limiter.LastTick.Time,
			"accounts":   limiter.LastTick.Accounts,
			"violations": limiter.LastTick.Violations,
		}
		limiter.LastTick.RUnlock()

		c.JSON(200, gin.H{
			"nodes":         nodes,
			"running_tasks": len(Eng.Sup.Running()),
			"last_check":    tick,
			"num_disabled":  len(DB.ListDisabled()),
			"num_except":    len(DB.ListExcept()),
			"general_limit": limiter.LoadSettings(DB).GeneralLimit,
		})
	})

	r.GET("/api/live", liveHandler)

	r.GET("/admin/:pass/disabled", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		ctx.JSON(200, DB.ListDisabled())
	})

	r.GET("/admin/:pass/violations/:user", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		ctx.JSON(200, DB.Violations(ctx.Param("user"), 50))
	})

	r.GET("/admin/:pass/except", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		ctx.JSON(200, DB.ListExcept())
	})

	r.POST("/admin/:pass/except/:user", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		if err := DB.AddExcept(ctx.Param("user")); err != nil {
			ctx.JSON(500, gin.H{"ok": false, "error": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"ok": true})
	})

	r.DELETE("/admin/:pass/except/:user", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		if err := DB.DeleteExcept(ctx.Param("user")); err != nil {
			ctx.JSON(500, gin.H{"ok": false, "error": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"ok": true})
	})

	r.POST("/admin/:pass/limit/:user/:n", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		n, err := strconv.Atoi(ctx.Param("n"))
		if err != nil || n < 0 {
			ctx.JSON(400, gin.H{"ok": false, "error": "invalid limit"})
			return
		}

		if err := DB.SetLimit(ctx.Param("user"), n); err != nil {
			ctx.JSON(500, gin.H{"ok": false, "error": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"ok": true})
	})

	r.DELETE("/admin/:pass/limit/:user", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		if err := DB.DeleteLimit(ctx.Param("user")); err != nil {
			ctx.JSON(500, gin.H{"ok": false, "error": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"ok": true})
	})

	// manual re-enable, ahead of the timer
	r.POST("/admin/:pass/enable/:user", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		username := ctx.Param("user")

		du := DB.GetDisabled(username)
		if du == nil {
			ctx.JSON(404, gin.H{"ok": false, "error": "user is not disabled"})
			return
		}

		method := limiter.LoadSettings(DB).DisableMethod
		if err := Panel.EnableUser(username, du.OriginalGroups, method); err != nil {
			ctx.JSON(502, gin.H{"ok": false, "error": err.Error()})
			return
		}
		if err := DB.CompleteReenable(username, util.Time()); err != nil {
			ctx.JSON(500, gin.H{"ok": false, "error": err.Error()})
			return
		}

		log.Info("user", username, "re-enabled manually")
		ctx.JSON(200, gin.H{"ok": true})
	})

	r.POST("/admin/:pass/config/:key/:value", func(ctx *gin.Context) {
		if !checkPass(ctx) {
			return
		}

		if err := DB.SetConfig(ctx.Param("key"), ctx.Param("value")); err != nil {
			ctx.JSON(500, gin.H{"ok": false, "error": err.Error()})
			return
		}
		ctx.JSON(200, gin.H{"ok": true})
	})

	err := r.Run(config.API_SERVER_HOST + ":" + strconv.FormatInt(int64(cfg.Cfg.ApiPort), 10))
	if err != nil {
		panic(err)
	}
}
