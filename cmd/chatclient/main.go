package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"PClient/global/config"
	"PClient/logger"
	"PClient/service/notify"
	"PClient/service/session"
	"PClient/service/timeline"
	"PClient/service/transport"
)

func main() {
	config.ConfigAll()
	name := flag.String("name", "", "display name (prompted when empty)")
	kind := flag.String("transport", config.Global.Transport, "transport kind: ws | nats")
	url := flag.String("url", config.Global.ServerURL, "websocket server url")
	flag.Parse()
	defer logger.Sync()

	in := bufio.NewScanner(os.Stdin)
	identity := strings.TrimSpace(*name)
	for identity == "" {
		fmt.Print("Enter your username: ")
		if !in.Scan() {
			return
		}
		identity = strings.TrimSpace(in.Text())
	}

	var tr transport.Transport
	switch *kind {
	case config.TransportNats:
		tr = transport.NewNats(transport.NatsConfig{
			Servers:  config.Global.NatsServers,
			Name:     "chatclient-" + identity,
			ClientID: identity,
		})
	default:
		tr = transport.NewWS(transport.WSConfig{URL: *url})
	}

	s, err := session.New(session.Config{
		Identity:    identity,
		Transport:   tr,
		Sink:        notify.NewBellSink(os.Stdout),
		TypingQuiet: config.Global.TypingQuiet,
	})
	if err != nil {
		logger.Errorf("session: %v", err)
		return
	}
	defer s.Terminate()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := s.Start(ctx); err != nil {
		cancel()
		logger.Errorf("connect: %v", err)
		return
	}
	cancel()
	fmt.Printf("Chatting as %s. /pm <user> <text>, /who, /quit\n", identity)

	s.Typing.OnChange = func(who string) {
		if who != "" && who != identity {
			fmt.Printf("** %s is typing...\n", who)
		}
	}

	go renderLoop(s)

	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/who":
			fmt.Printf("Online (%d): %s\n", s.Roster.Count(), strings.Join(s.Roster.Online(), ", "))
		case strings.HasPrefix(line, "/pm "):
			parts := strings.SplitN(line[4:], " ", 2)
			if len(parts) != 2 {
				fmt.Println("usage: /pm <user> <text>")
				continue
			}
			if err := s.StartPrivateChat(parts[0], parts[1]); err != nil {
				logger.Warnf("private send: %v", err)
			}
		default:
			s.ReportTyping(line)
			if err := s.SendBroadcast(line); err != nil {
				logger.Warnf("send: %v", err)
			}
		}
	}
}

// renderLoop prints new and rewritten timeline entries. Resolution
// rewrites an entry in place, so a printed Sending line is followed
// by a fresh Delivered line for the same message.
func renderLoop(s *session.Session) {
	printed := 0
	resolved := make(map[int]bool)
	for range time.Tick(200 * time.Millisecond) {
		entries := s.Log.Entries()
		for i, e := range entries {
			if i >= printed {
				printEntry(e)
				if e.Status != timeline.StatusSending {
					resolved[i] = true
				}
				continue
			}
			if e.Status == timeline.StatusDelivered && !resolved[i] {
				printEntry(e)
				resolved[i] = true
			}
		}
		printed = len(entries)
	}
}

func printEntry(e timeline.LogEntry) {
	stamp := e.At.Format("15:04:05")
	switch e.Kind {
	case timeline.KindNotification:
		fmt.Printf("--- %s ---\n", e.Body)
	case timeline.KindPrivate:
		fmt.Printf("[PM %s] %s: %s\n", stamp, e.Sender, e.Body)
	default:
		fmt.Printf("[%s] %s: %s (%s)\n", stamp, e.Sender, e.Body, e.Status)
	}
}
