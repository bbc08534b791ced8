package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"mcaptracker/internal/service"
)

// sync tails a watcher's valid_tokens.json and POSTs tokens it has not sent
// yet to the tracker's /add-token endpoint. Sent links are remembered in
// sent_tokens.json so restarts do not re-submit.

type syncConfig struct {
	ServerURL       string
	ValidTokensPath string
	SentTokensPath  string
	CheckInterval   time.Duration
	MaxRetries      uint64
	RetryDelay      time.Duration
}

func loadSyncConfig() *syncConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &syncConfig{
		ServerURL:       strings.TrimRight(getEnv("MCAP_SERVER_URL", "http://localhost:8080"), "/"),
		ValidTokensPath: getEnv("VALID_TOKENS_PATH", "json_files/valid_tokens.json"),
		SentTokensPath:  getEnv("SENT_TOKENS_PATH", "sent_tokens.json"),
		CheckInterval:   time.Duration(getEnvInt("SYNC_CHECK_INTERVAL", 5)) * time.Second,
		MaxRetries:      uint64(getEnvInt("SYNC_MAX_RETRIES", 3)),
		RetryDelay:      time.Duration(getEnvInt("SYNC_RETRY_DELAY", 5)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

type watchedToken struct {
	Name      string `json:"name"`
	Link      string `json:"link"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Liquidity string `json:"liquidity,omitempty"`
	MarketCap string `json:"market_cap,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

type tokenPayload struct {
	Name      string  `json:"name"`
	Link      string  `json:"link"`
	Address   *string `json:"address"`
	Timestamp int64   `json:"timestamp"`
	Liquidity string  `json:"liquidity,omitempty"`
	MarketCap string  `json:"market_cap,omitempty"`
	Narrative string  `json:"narrative,omitempty"`
}

type sentEntry struct {
	Link      string `json:"link"`
	Name      string `json:"name"`
	SentAt    int64  `json:"sent_at"`
	SentAtISO string `json:"sent_at_iso"`
}

type syncer struct {
	cfg        *syncConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func newSyncer(cfg *syncConfig, logger *logrus.Logger) *syncer {
	return &syncer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func loadJSONFile[T any](path string) []T {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func (s *syncer) sentLinks() map[string]struct{} {
	entries := loadJSONFile[sentEntry](s.cfg.SentTokensPath)
	links := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Link != "" {
			links[e.Link] = struct{}{}
		}
	}
	return links
}

func (s *syncer) markSent(token watchedToken) {
	entries := loadJSONFile[sentEntry](s.cfg.SentTokensPath)

	kept := entries[:0]
	for _, e := range entries {
		if e.Link != token.Link {
			kept = append(kept, e)
		}
	}
	now := time.Now()
	kept = append(kept, sentEntry{
		Link:      token.Link,
		Name:      token.Name,
		SentAt:    now.Unix(),
		SentAtISO: now.Format(time.RFC3339),
	})

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal sent tokens")
		return
	}
	if err := os.WriteFile(s.cfg.SentTokensPath, data, 0o644); err != nil {
		s.logger.WithError(err).Error("Failed to save sent tokens")
	}
}

func buildPayload(token watchedToken) tokenPayload {
	var address *string
	if extracted := service.ExtractAddress(token.Link); extracted != "" {
		address = &extracted
	}

	timestamp := token.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	return tokenPayload{
		Name:      token.Name,
		Link:      token.Link,
		Address:   address,
		Timestamp: timestamp,
		Liquidity: token.Liquidity,
		MarketCap: token.MarketCap,
		Narrative: token.Narrative,
	}
}

// sendToken POSTs one token with bounded constant-backoff retry. Client
// errors other than 429 are not retried.
func (s *syncer) sendToken(ctx context.Context, token watchedToken) error {
	body, err := json.Marshal(buildPayload(token))
	if err != nil {
		return err
	}
	url := s.cfg.ServerURL + "/add-token"

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewConstant(s.cfg.RetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.logger.WithError(err).WithField("token", token.Name).Warn("Request failed, will retry")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			s.logger.WithField("token", token.Name).Info("Token sent to server")
			return nil
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		err = fmt.Errorf("server returned status %d: %s", resp.StatusCode, respBody)

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return err
		}
		return retry.RetryableError(err)
	})
}

// syncNew sends every token in valid_tokens.json whose link has not been
// sent before. Returns the number synced.
func (s *syncer) syncNew(ctx context.Context) int {
	tokens := loadJSONFile[watchedToken](s.cfg.ValidTokensPath)
	if len(tokens) == 0 {
		return 0
	}

	sent := s.sentLinks()
	synced := 0
	for _, token := range tokens {
		if token.Link == "" {
			continue
		}
		if _, done := sent[token.Link]; done {
			continue
		}

		s.logger.WithField("token", token.Name).Info("Syncing new token")
		if err := s.sendToken(ctx, token); err != nil {
			s.logger.WithError(err).WithField("token", token.Name).Error("Failed to sync token, will retry on next check")
			continue
		}
		s.markSent(token)
		synced++
	}
	return synced
}

func (s *syncer) run(ctx context.Context) {
	s.logger.WithFields(logrus.Fields{
		"watching": s.cfg.ValidTokensPath,
		"server":   s.cfg.ServerURL,
		"interval": s.cfg.CheckInterval,
	}).Info("Token sync service started")

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down gracefully...")
			return
		case <-ticker.C:
			if synced := s.syncNew(ctx); synced > 0 {
				s.logger.WithField("count", synced).Info("Synced tokens")
			}
		}
	}
}

func main() {
	cfg := loadSyncConfig()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	newSyncer(cfg, logger).run(ctx)
}
