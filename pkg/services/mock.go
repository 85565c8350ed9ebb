package services

import (
	"fmt"
	"strings"

	"chatline/models"
)

// Local generators used when the Gemini integration is disabled. They keep
// the assist surface working offline (and in tests) with canned output.

func suggestLocal(recent []models.Message, selfID int64) []string {
	last := recent[len(recent)-1]
	if last.SenderID == selfID {
		return []string{"Anything else on your side?", "Let me know when you can.", "Thanks!"}
	}
	q := strings.HasSuffix(strings.TrimSpace(last.Content), "?")
	if q {
		return []string{"Yes, sounds good.", "Not sure yet, let me check.", "Can we talk about it later?"}
	}
	return []string{"Got it.", "Sounds good!", "Thanks for letting me know."}
}

func summarizeLocal(msgs []models.Message) string {
	senders := map[int64]struct{}{}
	for _, m := range msgs {
		senders[m.SenderID] = struct{}{}
	}
	last := msgs[len(msgs)-1]
	return fmt.Sprintf("Conversation with %d message(s) between %d participant(s). Most recent: %q.",
		len(msgs), len(senders), last.Preview(80))
}
