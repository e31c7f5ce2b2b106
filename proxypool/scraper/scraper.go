package scraper

// Scraper defines a candidate source that yields raw host:port
// addresses of possible SOCKS5 upstreams. Implementations only fetch
// and parse; validation is the pool's job.
type Scraper interface {
	// Scrape fetches candidate addresses from the source.
	Scrape() ([]string, error)

	// Name returns the source name for logging.
	Name() string
}
