package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lokipool/internal/shared/logger"
	"lokipool/internal/shared/types"
)

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// QuakeScraper pulls SOCKS5 candidates from the 360 Quake API.
type QuakeScraper struct {
	cfg    types.QuakeConf
	client *http.Client
}

type quakeRequest struct {
	Query   string   `json:"query"`
	Latest  bool     `json:"latest"`
	Start   int      `json:"start"`
	Size    int      `json:"size"`
	Include []string `json:"include"`
}

type quakeResponse struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
	Data    []quakeItem `json:"data"`
}

type quakeItem struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// NewQuakeScraper creates a Quake scraper from its config section.
func NewQuakeScraper(cfg types.QuakeConf) Scraper {
	return &QuakeScraper{
		cfg: cfg,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *QuakeScraper) Name() string {
	return "quake"
}

func (s *QuakeScraper) Scrape() ([]string, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	body, err := json.Marshal(quakeRequest{
		Query:   s.cfg.Query,
		Latest:  true,
		Start:   0,
		Size:    s.cfg.Size,
		Include: []string{"ip", "port"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create quake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("X-QuakeToken", s.cfg.Key)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quake request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quake returned non-200 status code: %d", resp.StatusCode)
	}

	var data quakeResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode quake response: %w", err)
	}
	if data.Code.String() != "0" {
		return nil, fmt.Errorf("quake API error: %s", data.Message)
	}

	addresses := make([]string, 0, len(data.Data))
	for _, item := range data.Data {
		addresses = append(addresses, fmt.Sprintf("%s:%d", item.IP, item.Port))
	}

	l.Info().Int("count", len(addresses)).Str("source", s.Name()).Msg("Scrape finished.")
	return addresses, nil
}
