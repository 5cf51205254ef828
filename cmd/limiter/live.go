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
	"net/http"

	"pglimiter/limiter"
	"pglimiter/log"
	"pglimiter/mut"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// live enforcement event feed: every enforcement action is pushed to
// the connected operator sockets as JSON

type LiveConn struct {
	conn *websocket.Conn

	Alive bool
	IP    string
}

func (l *LiveConn) WriteJSON(data interface{}) error {
	return l.conn.WriteJSON(data)
}

func (l *LiveConn) Close() error {
	return l.conn.Close()
}

type LiveServer struct {
	Conns []*LiveConn

	mut.RWMutex
}

var Live LiveServer

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Broadcast sends the event to every alive socket and drops the dead
// ones.
func (s *LiveServer) Broadcast(ev limiter.Event) {
	conns := make([]*LiveConn, 0)

	s.Lock()
	for _, c := range s.Conns {
		if !c.Alive {
			log.Debug("live feed connection from", c.IP, "closed")
			continue
		}
		conns = append(conns, c)
	}
	s.Conns = conns
	s.Unlock()

	for _, cx := range conns {
		c := cx

		// write in a new thread to keep a slow socket from blocking
		// enforcement
		go func() {
			err := c.WriteJSON(ev)
			if err != nil {
				log.Debug("live feed write to", c.IP, "failed:", err)

				Live.Lock()
				c.Alive = false
				Live.Unlock()

				c.Close()
			}
		}()
	}
}

func liveHandler(ctx *gin.Context) {
	ws, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn("live feed upgrade failed:", err)
		return
	}

	c := &LiveConn{
		conn:  ws,
		Alive: true,
		IP:    ctx.ClientIP(),
	}

	Live.Lock()
	Live.Conns = append(Live.Conns, c)
	Live.Unlock()

	log.Debug("live feed connection from", c.IP)

	// we never expect messages; the read loop only detects the close
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				Live.Lock()
				c.Alive = false
				Live.Unlock()
				return
			}
		}
	}()
}
