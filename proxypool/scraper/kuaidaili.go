package scraper

import (
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"lokipool/internal/shared/logger"
)

// KuaidailiScraper scrapes the free proxy list on www.kuaidaili.com.
// The page embeds its table data in a JS variable, so the rows are
// pulled out of the raw response body instead of the DOM. Candidates
// from here are unverified; the prober weeds out anything that does
// not actually speak SOCKS5.
type KuaidailiScraper struct {
	collector *colly.Collector
	pageURLs  []string
}

// tempKuaidailiProxy is the shape of one entry inside the fpsList
// variable.
type tempKuaidailiProxy struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
}

// NewKuaidailiScraper creates a new KuaidailiScraper instance.
func NewKuaidailiScraper() Scraper {
	c := colly.NewCollector(
		colly.UserAgent(scraperUserAgent),
	)
	c.SetRequestTimeout(20 * time.Second)

	return &KuaidailiScraper{
		collector: c,
		pageURLs: []string{
			"https://www.kuaidaili.com/free/dps/",
			"https://www.kuaidaili.com/free/fps/",
		},
	}
}

func (s *KuaidailiScraper) Name() string {
	return "kuaidaili.com"
}

func (s *KuaidailiScraper) Scrape() ([]string, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	var addresses []string
	var mu sync.Mutex

	re := regexp.MustCompile(`(var|let|const)\s+fpsList\s*=\s*(\[.*?\]);`)

	s.collector.OnResponse(func(r *colly.Response) {
		matches := re.FindSubmatch(r.Body)
		if len(matches) < 3 {
			l.Warn().Str("url", r.Request.URL.String()).Msg("Could not find fpsList variable in response body.")
			return
		}

		var entries []tempKuaidailiProxy
		if err := json.Unmarshal(matches[2], &entries); err != nil {
			l.Warn().Err(err).Str("url", r.Request.URL.String()).Msg("Failed to unmarshal fpsList JSON.")
			return
		}

		mu.Lock()
		defer mu.Unlock()
		for _, entry := range entries {
			if entry.IP == "" || entry.Port == "" {
				continue
			}
			addresses = append(addresses, net.JoinHostPort(entry.IP, entry.Port))
		}
	})

	var visitErr error
	for _, pageURL := range s.pageURLs {
		if err := s.collector.Visit(pageURL); err != nil {
			visitErr = err
			l.Warn().Err(err).Str("url", pageURL).Msg("Visit failed.")
		}
	}
	s.collector.Wait()

	if len(addresses) == 0 && visitErr != nil {
		return nil, fmt.Errorf("scrape of %s failed: %w", s.Name(), visitErr)
	}

	l.Info().Int("count", len(addresses)).Str("source", s.Name()).Msg("Scrape finished.")
	return addresses, nil
}
