// chatterm is a minimal terminal chat client built on pkg/client. It dials
// the relay, opens one conversation and bridges stdin lines to messages.
// Useful for poking at a running relay without a browser.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"chatrelay/pkg/client"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

func main() {
	url := flag.String("url", "ws://127.0.0.1:8080/ws", "relay websocket URL")
	user := flag.Int64("user", 0, "participant id (0 = anonymous visitor)")
	role := flag.String("role", "", "participant role (defaults to visitor for id 0)")
	peer := flag.Int64("peer", 0, "conversation peer id")
	flag.Parse()

	logger.InitWithLevel("warn")

	ident := client.Visitor()
	if *user != models.AnonymousID {
		r := *role
		if r == "" {
			r = "talent"
		}
		ident = client.Identity{ID: *user, Role: r}
	}

	ctrl := client.NewController(*url, ident, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := ctrl.Connect(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	ctrl.OpenChat(*peer)
	fmt.Printf("connected as %d (%s), chatting with %d. type and press enter, /quit to exit\n",
		ident.ID, ident.Role, *peer)

	// poll the open log for new entries; good enough for a debug tool
	go func() {
		seen := 0
		for {
			time.Sleep(300 * time.Millisecond)
			log := ctrl.Log(*peer)
			for ; seen < len(log); seen++ {
				m := log[seen]
				who := "them"
				if m.SenderID == ident.ID {
					who = "you"
				}
				fmt.Printf("[%s] %s\n", who, m.Content)
			}
			if ctrl.PeerTyping() {
				fmt.Println("... peer is typing")
			}
		}
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "/quit" {
			break
		}
		if line == "" {
			continue
		}
		ctrl.Keystroke()
		if err := ctrl.SendMessage(line); err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}
	}
	ctrl.Logout()
}
