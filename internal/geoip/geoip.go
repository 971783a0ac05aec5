// Package geoip resolves server addresses to country codes using a MaxMind
// database, downloading and refreshing the database file when configured.
package geoip

import (
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// CountryCode looks up the ISO country code (e.g., "US", "DE") for an IP
// address. It returns an empty string if the IP is invalid or the country
// cannot be determined.
func (p *Provider) CountryCode(ip net.IP) string {
	if ip == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// EnsureDB checks that the database file exists and is newer than maxAge,
// downloading a fresh copy from url otherwise.
func EnsureDB(path, url string, maxAge time.Duration) error {
	info, err := os.Stat(path)

	switch {
	case err == nil && time.Since(info.ModTime()) < maxAge:
		log.Debug().Str("path", path).Msg("GeoIP database is up to date")
		return nil
	case err == nil:
		log.Info().Str("path", path).Msg("GeoIP database is outdated, updating...")
	case os.IsNotExist(err):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading...")
	default:
		return err
	}

	return downloadFile(path, url)
}

// downloadFile fetches url into path through a temporary file so the final
// rename is atomic.
func downloadFile(path string, url string) error {
	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	resp, err := http.Get(url) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("Failed to download GeoIP DB")
		return os.ErrInvalid
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
