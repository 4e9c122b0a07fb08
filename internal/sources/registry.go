package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags how a source is fetched and extracted.
type Kind string

const (
	KindFeed Kind = "feed"
	KindPage Kind = "page"
)

// Entry is one configured news origin.
type Entry struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Kind     Kind   `json:"type" yaml:"type"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
}

// DefaultEntries is the built-in registry used when no sources file is configured.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "Algérie Presse Service", URL: "https://www.echoroukonline.com/feed", Kind: KindFeed},
		{Name: "El Watan", URL: "https://www.elwatan.com", Kind: KindPage, Selector: ".article-item"},
	}
}

// Validate checks that the entry is usable.
func (e Entry) Validate() error {
	if e.Name == "" {
		return errors.New("name is required")
	}
	u, err := url.Parse(e.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source %q: url %q must be an absolute http(s) url", e.Name, e.URL)
	}
	switch e.Kind {
	case KindFeed:
	case KindPage:
		if e.Selector == "" {
			return fmt.Errorf("source %q: selector is required for page sources", e.Name)
		}
	default:
		return fmt.Errorf("source %q: type %q not supported (expected feed or page)", e.Name, e.Kind)
	}
	return nil
}

type registryFile struct {
	Sources []Entry `json:"sources" yaml:"sources"`
}

// LoadEntries reads a YAML or JSON registry file. Environment variables in the file are
// expanded before decoding.
func LoadEntries(path string) ([]Entry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(raw)))

	file, err := decodeRegistry(expanded, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	return SanitizeEntries(file.Sources)
}

// SanitizeEntries normalizes and validates entries and rejects duplicate names.
func SanitizeEntries(entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	names := make(map[string]struct{}, len(entries))

	for i, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		e.URL = strings.TrimSpace(e.URL)
		e.Kind = Kind(strings.ToLower(strings.TrimSpace(string(e.Kind))))
		e.Selector = strings.TrimSpace(e.Selector)
		if e.Kind == "rss" {
			e.Kind = KindFeed
		}

		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := names[e.Name]; dup {
			return nil, fmt.Errorf("duplicate source name %q", e.Name)
		}
		names[e.Name] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

func decodeRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var lastErr error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file registryFile
		if err := d.fn(data, &file); err != nil {
			lastErr = fmt.Errorf("decode %s sources: %w", d.name, err)
			continue
		}
		return file, nil
	}

	if lastErr != nil {
		return registryFile{}, lastErr
	}
	return registryFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}
