// Command keysprintd is a headless demonstration of the mesh core: it
// wires a Core to stdin commands (create/join/leave/ready/type/finish)
// and logs every emitted event. It is not part of the core's public
// contract.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/keysprint/core"
	"github.com/keysprint/core/config"
	"github.com/keysprint/core/internal/events"
	"github.com/keysprint/core/internal/textsource"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "keysprintd: logger init failed:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	name := "player"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	sink := events.Sink{
		OnRoomFound:        func(e events.RoomEntry) { log.Infow("room found", "host", e.HostName, "ip", e.HostIP, "port", e.HostPort) },
		OnRoomsChanged:     func(all []events.RoomEntry) { log.Infow("rooms changed", "count", len(all)) },
		OnPlayerJoined:     func(p events.PlayerView) { log.Infow("player joined", "name", p.Name) },
		OnPlayerLeft:       func(name string) { log.Infow("player left", "name", name) },
		OnPlayersChanged:   func(all []events.PlayerView) { log.Infow("players changed", "count", len(all)) },
		OnCountdownStarted: func(seconds int) { log.Infow("countdown started", "seconds", seconds) },
		OnProgressUpdated:  func(p events.PlayerView) { log.Infow("progress", "name", p.Name, "position", p.Position, "wpm", p.WPM) },
		OnRaceFinished:     func(rows []events.RankingRow) { log.Infow("race finished", "rankings", rows) },
		OnJoinFailed:       func(reason string) { log.Warnw("join failed", "reason", reason) },
		OnJoinSucceeded:    func() { log.Infow("join succeeded") },
		OnInviteReceived:   func() { log.Infow("play-again invite received") },
	}

	c := core.New(core.Options{
		PlayerName:   name,
		TextProvider: textsource.NewFixed(),
		Events:       sink,
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		log.Fatalw("start failed", "error", err)
	}
	defer c.Stop()

	log.Infow("=================================")
	log.Infow("  keysprintd mesh core demo")
	log.Infow("=================================")
	log.Infow("  name", "value", name)
	log.Infow("  id", "value", c.ID().String())
	log.Infow("  mesh port", "value", c.ListenPort())
	log.Infow("  discovery port", "value", config.DiscoveryPort)
	log.Infow("=================================")
	log.Infow("commands: create | join <ip> <port> | leave | ready | type <pos> <total> <wpm> | finish <wpm> <accuracy> | rooms | players | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !dispatch(c, log, scanner.Text()) {
			return
		}
	}
}

func dispatch(c *core.Core, log *zap.SugaredLogger, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "quit", "exit":
		return false
	case "create":
		log.Infow("createRoom", "ok", c.CreateRoom())
	case "join":
		if len(fields) != 3 {
			log.Warnw("usage: join <ip> <port>")
			return true
		}
		port, err := strconv.Atoi(fields[2])
		if err != nil {
			log.Warnw("bad port", "value", fields[2])
			return true
		}
		log.Infow("joinRoom", "ok", c.JoinRoom(fields[1], port))
	case "leave":
		c.LeaveRoom()
	case "ready":
		c.StartCountdown()
	case "type":
		if len(fields) != 4 {
			log.Warnw("usage: type <pos> <total> <wpm>")
			return true
		}
		pos, _ := strconv.Atoi(fields[1])
		total, _ := strconv.Atoi(fields[2])
		wpm, _ := strconv.Atoi(fields[3])
		c.UpdateProgress(pos, total, wpm)
	case "finish":
		if len(fields) != 3 {
			log.Warnw("usage: finish <wpm> <accuracy>")
			return true
		}
		wpm, _ := strconv.Atoi(fields[1])
		accuracy, _ := strconv.ParseFloat(fields[2], 64)
		c.FinishRace(wpm, accuracy)
	case "rooms":
		log.Infow("rooms", "entries", c.Rooms())
	case "players":
		log.Infow("players", "entries", c.Players())
	default:
		log.Warnw("unknown command", "line", line)
	}
	return true
}
