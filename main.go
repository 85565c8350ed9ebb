package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatline/client"
	"chatline/models"
	"chatline/pkg/config"
)

func main() {
	username := flag.String("user", os.Getenv("CHAT_USERNAME"), "account username")
	password := flag.String("pass", os.Getenv("CHAT_PASSWORD"), "account password")
	register := flag.Bool("register", false, "create the account before logging in")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: chatline -user NAME -pass SECRET [-register]")
		os.Exit(2)
	}

	ctx := context.Background()
	sess := client.NewSession()

	if *register {
		if _, err := sess.API.Register(ctx, *username, *password); err != nil {
			log.Fatalf("register failed: %v", err)
		}
	}
	if err := sess.Login(ctx, *username, *password); err != nil {
		log.Fatalf("login failed: %v", err)
	}
	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("push connect failed: %v", err)
	}
	defer sess.Logout()

	sess.SetOnChange(render)

	guard := client.NewSendGuard(
		time.Duration(config.SendWindowSeconds)*time.Second,
		config.SendCapacity,
		time.Duration(config.DuplicateWindowSeconds)*time.Second,
	)

	fmt.Println("connected. /rooms to list conversations, /help for commands.")
	repl(ctx, sess, guard)
}

func repl(ctx context.Context, sess *client.Session, guard *client.SendGuard) {
	var rooms []models.Conversation
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := guard.Allow(line); err != nil {
				fmt.Println("!", err)
				continue
			}
			if v := sess.View(); v != nil {
				v.Compose(line)
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "quit", "q":
			return
		case "help":
			printHelp()
		case "rooms":
			var err error
			rooms, err = sess.API.Rooms(ctx)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			for _, r := range rooms {
				tail := ""
				if r.LastMessage != nil {
					tail = " | " + r.LastMessage.Content
				}
				fmt.Printf("  [%d] %s (%s)%s\n", r.ID, r.Label(), r.ChatType, tail)
			}
		case "open":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("! usage: /open ROOM_ID")
				continue
			}
			conv, ok := findRoom(rooms, id)
			if !ok {
				conv = models.Conversation{ID: id, ChatType: models.ChatTypeDirect}
			}
			sess.Open(conv)
		case "suggest":
			if v := sess.View(); v != nil {
				v.RequestSuggestions()
			}
		case "summary":
			if v := sess.View(); v != nil {
				v.RequestSummary()
			}
		case "search":
			users, err := sess.API.SearchUsers(ctx, arg)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			for _, u := range users {
				fmt.Printf("  [%d] %s online=%v\n", u.ID, u.Name(), u.IsOnline)
			}
		case "request":
			if _, err := sess.API.SendRequest(ctx, arg); err != nil {
				fmt.Println("!", err)
				continue
			}
			fmt.Println("request sent to", arg)
		case "requests":
			reqs, err := sess.API.PendingRequests(ctx)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			for _, r := range reqs {
				fmt.Printf("  [%d] from %s (%s)\n", r.ID, r.Sender.Name(), r.Status)
			}
		case "accept", "reject":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Printf("! usage: /%s REQUEST_ID\n", cmd)
				continue
			}
			if err := sess.API.RespondRequest(ctx, id, cmd == "accept"); err != nil {
				fmt.Println("!", err)
			}
		case "upload":
			if arg == "" {
				fmt.Println("! usage: /upload FILE")
				continue
			}
			f, err := os.Open(arg)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			up, err := sess.API.Upload(ctx, filepath.Base(arg), f)
			f.Close()
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			fmt.Printf("uploaded %s (%s)\n", up.FileName, up.FileType)
			if v := sess.View(); v != nil {
				v.Compose(up.FileURL)
			}
		case "group":
			name, members, ok := parseGroupArgs(arg)
			if !ok {
				fmt.Println("! usage: /group NAME uid,uid,...")
				continue
			}
			if err := sess.API.CreateGroup(ctx, name, members); err != nil {
				fmt.Println("!", err)
			}
		default:
			fmt.Println("! unknown command, /help")
		}
	}
}

// render is the stand-in for the real rendering layer: dump the snapshot.
func render(s client.Snapshot) {
	if s.Conversation == nil {
		return
	}
	fmt.Printf("\n--- %s ---\n", s.Conversation.Label())
	for _, m := range s.Messages {
		who := "them"
		if m.IsMine {
			who = "me"
			if client.IsProvisionalID(m.ID) {
				who = "me*" // not yet confirmed
			}
		}
		fmt.Printf("  %s: %s\n", who, m.Content)
	}
	if len(s.Suggestions) > 0 {
		fmt.Println("  suggestions:", strings.Join(s.Suggestions, " | "))
	}
	if s.Summary != "" {
		fmt.Println("  summary:", s.Summary)
	}
}

func findRoom(rooms []models.Conversation, id int64) (models.Conversation, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Conversation{}, false
}

func parseGroupArgs(arg string) (string, []int64, bool) {
	name, rest, ok := strings.Cut(arg, " ")
	if !ok || name == "" {
		return "", nil, false
	}
	var ids []int64
	for _, p := range strings.Split(rest, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return "", nil, false
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", nil, false
	}
	return name, ids, true
}

func printHelp() {
	fmt.Println(`commands:
  /rooms                 list conversations
  /open ROOM_ID          switch active conversation
  TEXT                   send TEXT to the active conversation
  /suggest               AI reply suggestions
  /summary               AI conversation summary
  /search PREFIX         find users
  /request USERNAME      send a chat request
  /requests              list pending requests
  /accept ID, /reject ID answer a request
  /upload FILE           attach a file to the active conversation
  /group NAME uid,uid    create a group
  /quit`)
}
