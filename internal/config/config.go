package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath        string
	InputDir      string
	OutputDir     string
	LexiconPath   string
	ExportFormats []string

	LogLevel  string
	LogFormat string

	FoodAPIBaseURL       string
	FoodAPIToken         string
	FoodAPIRateLimitRPS  int
	FoodAPITimeoutMs     int
	FoodAPILookbackHours int

	MatchOKThreshold     float64
	MatchReviewThreshold float64
	MatchGapThreshold    float64

	EmbeddingDim int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailProvider string
	MailLabel    string
	MailFetchMax int
	MailInboxDir string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	inputDir := getEnv("INPUT_DIR", filepath.Join(cwd, "data", "input"))
	cfg := Config{
		DBPath:        getEnv("DB_PATH", filepath.Join(cwd, "data", "nutridoc.db")),
		InputDir:      inputDir,
		OutputDir:     getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LexiconPath:   getEnv("LEXICON_PATH", ""),
		ExportFormats: getEnvList("EXPORT_FORMATS", []string{"json", "report"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		FoodAPIBaseURL:       getEnv("FOOD_API_BASE_URL", "https://foods.example.org/api/v1"),
		FoodAPIToken:         getEnv("FOOD_API_TOKEN", ""),
		FoodAPIRateLimitRPS:  getEnvInt("FOOD_API_RATE_LIMIT_RPS", 5),
		FoodAPITimeoutMs:     getEnvInt("FOOD_API_TIMEOUT_MS", 30000),
		FoodAPILookbackHours: getEnvInt("FOOD_API_LOOKBACK_HOURS", 24),

		MatchOKThreshold:     getEnvFloat("MATCH_OK_THRESHOLD", 0.90),
		MatchReviewThreshold: getEnvFloat("MATCH_REVIEW_THRESHOLD", 0.72),
		MatchGapThreshold:    getEnvFloat("MATCH_GAP_THRESHOLD", 0.08),

		EmbeddingDim: getEnvInt("EMBEDDING_DIM", 256),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailProvider: getEnv("MAIL_PROVIDER", "gmail"),
		MailLabel:    getEnv("MAIL_LABEL", "INBOX"),
		MailFetchMax: getEnvInt("MAIL_FETCH_MAX", 20),
		MailInboxDir: getEnv("MAIL_INBOX_DIR", inputDir),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return SplitList(value)
}

// SplitList splits a comma separated value, dropping blanks and lower-casing.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
