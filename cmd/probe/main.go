// probe logs in, opens the push channel and prints every frame it can
// decode. Useful for checking connectivity and event shapes against a
// running backend without the full client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"chatline/models"
	"chatline/pkg/api"
	"chatline/pkg/config"
	"chatline/pkg/push"
	tokenstore "chatline/pkg/token"
)

func main() {
	username := flag.String("user", os.Getenv("CHAT_USERNAME"), "account username")
	password := flag.String("pass", os.Getenv("CHAT_PASSWORD"), "account password")
	duration := flag.Duration("for", 0, "exit after this long (0 = until interrupt)")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: probe -user NAME -pass SECRET [-for 30s]")
		os.Exit(2)
	}

	ctx := context.Background()
	tokens := tokenstore.NewStore()
	rest := api.NewClient(config.ServerURL, tokens)
	if err := rest.Login(ctx, *username, *password); err != nil {
		log.Fatalf("login failed: %v", err)
	}

	pc := push.NewClient(config.WSURL, tokens, time.Duration(config.PushReconnectMaxSeconds)*time.Second)
	pc.Subscribe(func(m models.Message) {
		fmt.Printf("%s room=%d sender=%d id=%d %q\n",
			m.CreatedAt.Format(time.RFC3339), m.ConversationID, m.SenderID, m.ID, m.Content)
	})
	if err := pc.Connect(ctx); err != nil {
		log.Fatalf("push connect failed: %v", err)
	}
	defer pc.Close()

	log.Printf("[probe] listening on %s", config.WSURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	if *duration > 0 {
		select {
		case <-stop:
		case <-time.After(*duration):
		}
		return
	}
	<-stop
}
