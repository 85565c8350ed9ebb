package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// Backend endpoints.
	ServerURL string
	WSURL     string

	AppEnv       string
	IsProduction bool

	// Gemini assist settings. IsGeminiEnabled gates real API calls; when
	// false the local mock generator answers instead.
	GeminiAPIKey    string
	GeminiModel     string
	IsGeminiEnabled bool

	// runtime tunables
	HistoryPageSize         int
	SuggestCacheTTLSeconds  int
	SuggestCacheMaxItems    int
	SendWindowSeconds       int
	SendCapacity            int
	DuplicateWindowSeconds  int
	PushReconnectMaxSeconds int
)

// loadAppEnv loads .env for non-production runs; production reads the host
// environment only.
func loadAppEnv() {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "production" {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}
}

func init() {
	loadAppEnv()

	ServerURL = strings.TrimRight(os.Getenv("SERVER_URL"), "/")
	if ServerURL == "" {
		ServerURL = "http://localhost:8000"
	}
	WSURL = strings.TrimRight(os.Getenv("WS_URL"), "/")
	if WSURL == "" {
		// derive ws endpoint from the http one
		WSURL = strings.Replace(strings.Replace(ServerURL, "https://", "wss://", 1), "http://", "ws://", 1)
	}

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "staging"
	}
	IsProduction = AppEnv == "production"

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiModel = os.Getenv("GEMINI_MODEL")
	if GeminiModel == "" {
		GeminiModel = "gemini-2.0-flash"
	}
	IsGeminiEnabled = os.Getenv("IS_GEMINI_ENABLED") == "1"

	HistoryPageSize = atoiOr(os.Getenv("HISTORY_PAGE_SIZE"), 50)
	SuggestCacheTTLSeconds = atoiOr(os.Getenv("SUGGEST_CACHE_TTL_SECONDS"), 300)
	SuggestCacheMaxItems = atoiOr(os.Getenv("SUGGEST_CACHE_MAX_ITEMS"), 200)
	SendWindowSeconds = atoiOr(os.Getenv("SEND_WINDOW_SECONDS"), 10)
	SendCapacity = atoiOr(os.Getenv("SEND_CAPACITY"), 5)
	DuplicateWindowSeconds = atoiOr(os.Getenv("DUPLICATE_WINDOW_SECONDS"), 45)
	PushReconnectMaxSeconds = atoiOr(os.Getenv("PUSH_RECONNECT_MAX_SECONDS"), 30)

	log.Printf("[config] AppEnv=%s ServerURL=%s WSURL=%s", AppEnv, ServerURL, WSURL)
	log.Printf("[config] IsGeminiEnabled=%v GeminiAPIKeyPresent=%v GeminiModel=%s", IsGeminiEnabled, GeminiAPIKey != "", GeminiModel)
	log.Printf("[config] historyPage=%d suggestTTL=%ds sendWindow=%ds sendCap=%d dupWindow=%ds",
		HistoryPageSize, SuggestCacheTTLSeconds, SendWindowSeconds, SendCapacity, DuplicateWindowSeconds)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
