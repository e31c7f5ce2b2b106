package scraper

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"lokipool/internal/shared/logger"
	"lokipool/internal/shared/types"
)

// HunterScraper pulls SOCKS5 candidates from the Qianxin Hunter API.
// Hunter paginates results, so the configured size is interpreted as a
// page count with 100 entries per page.
type HunterScraper struct {
	cfg       types.HunterConf
	client    *http.Client
	pageDelay time.Duration
}

type hunterResponse struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    hunterData `json:"data"`
}

type hunterData struct {
	Total int64        `json:"total"`
	Arr   []hunterItem `json:"arr"`
}

type hunterItem struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// NewHunterScraper creates a Hunter scraper from its config section.
func NewHunterScraper(cfg types.HunterConf) Scraper {
	return &HunterScraper{
		cfg: cfg,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		// Spacing between page requests, the API rate limits hard.
		pageDelay: 200 * time.Millisecond,
	}
}

func (s *HunterScraper) Name() string {
	return "hunter"
}

func (s *HunterScraper) Scrape() ([]string, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Int("pages", s.cfg.Size).Msg("Starting scrape...")

	search := base64.StdEncoding.EncodeToString([]byte(s.cfg.Query))

	var addresses []string
	var pageErr error
	for page := 1; page <= s.cfg.Size; page++ {
		reqURL := fmt.Sprintf("%s?api-key=%s&search=%s&page=%d&page_size=100",
			s.cfg.APIURL,
			url.QueryEscape(s.cfg.Key),
			url.QueryEscape(search),
			page,
		)

		pageAddrs, err := s.scrapePage(reqURL)
		if err != nil {
			// A single bad page is not fatal, keep going.
			pageErr = err
			l.Warn().Err(err).Int("page", page).Str("source", s.Name()).Msg("Page fetch failed, skipping.")
			continue
		}
		addresses = append(addresses, pageAddrs...)

		if page < s.cfg.Size {
			time.Sleep(s.pageDelay)
		}
	}

	if len(addresses) == 0 && pageErr != nil {
		return nil, fmt.Errorf("scrape of %s failed: %w", s.Name(), pageErr)
	}

	l.Info().Int("count", len(addresses)).Str("source", s.Name()).Msg("Scrape finished.")
	return addresses, nil
}

func (s *HunterScraper) scrapePage(reqURL string) ([]string, error) {
	resp, err := s.client.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("hunter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hunter returned non-200 status code: %d", resp.StatusCode)
	}

	var data hunterResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode hunter response: %w", err)
	}
	if data.Code != 200 {
		return nil, fmt.Errorf("hunter API error: %s", data.Message)
	}

	addresses := make([]string, 0, len(data.Data.Arr))
	for _, item := range data.Data.Arr {
		addresses = append(addresses, fmt.Sprintf("%s:%d", item.IP, item.Port))
	}
	return addresses, nil
}
