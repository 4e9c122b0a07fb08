// Package sources fetches configured news origins and turns their payloads into records.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/DeafMist/fire-radar/internal/httpclient"
	"github.com/DeafMist/fire-radar/internal/models"
)

// Source fetches one origin and returns candidate records. Candidates carry no category;
// classification happens once in the refresh loop.
type Source interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context) ([]models.NewsRecord, error)
}

// Option configures sources built by New.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the extraction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds the Source variant matching entry.Kind.
func New(entry Entry, client httpclient.Client, opts ...Option) (Source, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("source %q: http client is nil", entry.Name)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	switch entry.Kind {
	case KindFeed:
		return &feedSource{entry: entry, client: client, parser: gofeed.NewParser(), now: o.now}, nil
	case KindPage:
		return &pageSource{entry: entry, client: client, now: o.now}, nil
	}
	return nil, fmt.Errorf("source %q: unsupported type %q", entry.Name, entry.Kind)
}

// Build creates a Source for every entry, in order.
func Build(entries []Entry, client httpclient.Client, opts ...Option) ([]Source, error) {
	out := make([]Source, 0, len(entries))
	for _, e := range entries {
		src, err := New(e, client, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

type feedSource struct {
	entry  Entry
	client httpclient.Client
	parser *gofeed.Parser
	now    func() time.Time
}

func (s *feedSource) Name() string { return s.entry.Name }
func (s *feedSource) Kind() Kind   { return KindFeed }

func (s *feedSource) Fetch(ctx context.Context) ([]models.NewsRecord, error) {
	body, err := s.client.Get(ctx, s.entry.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %q: %w", s.entry.Name, err)
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %q: %w", s.entry.Name, err)
	}

	return ExtractFeed(s.entry, feed, s.now()), nil
}

type pageSource struct {
	entry  Entry
	client httpclient.Client
	now    func() time.Time
}

func (s *pageSource) Name() string { return s.entry.Name }
func (s *pageSource) Kind() Kind   { return KindPage }

func (s *pageSource) Fetch(ctx context.Context) ([]models.NewsRecord, error) {
	body, err := s.client.Get(ctx, s.entry.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page %q: %w", s.entry.Name, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %q: %w", s.entry.Name, err)
	}

	return ExtractPage(s.entry, doc, s.now()), nil
}
