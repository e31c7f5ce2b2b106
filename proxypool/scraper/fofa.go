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

// FofaScraper pulls SOCKS5 candidates from the FOFA search API.
type FofaScraper struct {
	cfg    types.FofaConf
	client *http.Client
}

// fofaResponse mirrors the FOFA API JSON envelope. With the default
// fields each result row starts with host:port.
type fofaResponse struct {
	Error   bool       `json:"error"`
	ErrMsg  string     `json:"errmsg"`
	Results [][]string `json:"results"`
}

// NewFofaScraper creates a FOFA scraper from its config section.
func NewFofaScraper(cfg types.FofaConf) Scraper {
	return &FofaScraper{
		cfg: cfg,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *FofaScraper) Name() string {
	return "fofa"
}

func (s *FofaScraper) Scrape() ([]string, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	qbase64 := base64.StdEncoding.EncodeToString([]byte(s.cfg.Query))
	reqURL := fmt.Sprintf("%s?key=%s&qbase64=%s&size=%d",
		s.cfg.APIURL,
		url.QueryEscape(s.cfg.Key),
		url.QueryEscape(qbase64),
		s.cfg.Size,
	)

	resp, err := s.client.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("fofa request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fofa returned non-200 status code: %d", resp.StatusCode)
	}

	var data fofaResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode fofa response: %w", err)
	}
	if data.Error {
		return nil, fmt.Errorf("fofa API error: %s", data.ErrMsg)
	}

	var addresses []string
	for _, row := range data.Results {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		// With the default field set the first column is host:port.
		addresses = append(addresses, row[0])
	}

	l.Info().Int("count", len(addresses)).Str("source", s.Name()).Msg("Scrape finished.")
	return addresses, nil
}
