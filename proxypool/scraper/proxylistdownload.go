package scraper

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lokipool/internal/shared/logger"
)

// ProxyListDownloadScraper scrapes the free SOCKS5 table on
// proxy-list.download. It needs no API key and serves as a fallback
// source when none of the paid APIs are configured.
type ProxyListDownloadScraper struct {
	client  *http.Client
	pageURL string
}

// NewProxyListDownloadScraper creates a new instance.
func NewProxyListDownloadScraper() Scraper {
	return &ProxyListDownloadScraper{
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		pageURL: "https://www.proxy-list.download/SOCKS5",
	}
}

func (s *ProxyListDownloadScraper) Name() string {
	return "proxy-list.download"
}

func (s *ProxyListDownloadScraper) Scrape() ([]string, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	req, err := http.NewRequest(http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.Name())
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", s.Name(), err)
	}

	var addresses []string
	doc.Find("table#example1 tbody#tabli tr").Each(func(_ int, sel *goquery.Selection) {
		ip := strings.TrimSpace(sel.Find("td").Eq(0).Text())
		port := strings.TrimSpace(sel.Find("td").Eq(1).Text())
		if ip == "" || port == "" {
			return
		}
		addresses = append(addresses, net.JoinHostPort(ip, port))
	})

	l.Info().Int("count", len(addresses)).Str("source", s.Name()).Msg("Scrape finished.")
	return addresses, nil
}
