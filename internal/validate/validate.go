// Package validate enforces the NewsRecord schema before records reach the cache.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/DeafMist/fire-radar/internal/models"
)

// ErrInvalid is wrapped by every schema violation returned from Record.
var ErrInvalid = errors.New("invalid record")

// Record checks a single record against the schema.
func Record(r models.NewsRecord) error {
	required := []struct {
		field string
		value string
	}{
		{"id", r.ID},
		{"title", r.Title},
		{"content", r.Content},
		{"source", r.Source},
		{"location", r.Location},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalid, f.field)
		}
	}

	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is empty", ErrInvalid)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w: category %q is not recognized", ErrInvalid, r.Category)
	}
	if err := absoluteURL(r.ImageURL); err != nil {
		return fmt.Errorf("%w: imageUrl: %v", ErrInvalid, err)
	}
	if err := absoluteURL(r.URL); err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalid, err)
	}
	return nil
}

func absoluteURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// Records returns the subset of candidates that pass Record, preserving order. Later
// records whose id was already accepted are dropped as well. Every rejection is logged.
func Records(candidates []models.NewsRecord, log *slog.Logger) []models.NewsRecord {
	out := make([]models.NewsRecord, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, r := range candidates {
		if err := Record(r); err != nil {
			if log != nil {
				log.Warn("record rejected",
					slog.String("source", r.Source),
					slog.String("url", r.URL),
					slog.Any("err", err),
				)
			}
			continue
		}
		if _, dup := seen[r.ID]; dup {
			if log != nil {
				log.Debug("duplicate record dropped", slog.String("id", r.ID), slog.String("url", r.URL))
			}
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
