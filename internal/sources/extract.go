package sources

import (
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/DeafMist/fire-radar/internal/models"
	"github.com/DeafMist/fire-radar/internal/processing"
)

const generatedTitleWords = 12

// Sub-selectors applied inside every node matched by a page source's selector.
const (
	pageTitleSelector = "h2"
	pageBodySelector  = "p"
	pageImageSelector = "img[src]"
	pageLinkSelector  = "a[href]"
)

// ExtractFeed maps every feed entry to a candidate record.
func ExtractFeed(entry Entry, feed *gofeed.Feed, now time.Time) []models.NewsRecord {
	if feed == nil {
		return nil
	}
	items := lo.Filter(feed.Items, func(item *gofeed.Item, _ int) bool { return item != nil })
	return lo.Map(items, func(item *gofeed.Item, _ int) models.NewsRecord {
		return feedRecord(entry, item, now)
	})
}

func feedRecord(entry Entry, item *gofeed.Item, now time.Time) models.NewsRecord {
	content := plainText(item.Description)
	if content == "" {
		content = plainText(item.Content)
	}

	title := processing.SquashSpaces(item.Title)
	if title == "" {
		title = processing.GenerateTitleFromText(content, generatedTitleWords)
	}

	link := processing.ResolveURL(item.Link, entry.URL)

	image := processing.ExtractImageURL(item.Content)
	if image == "" {
		image = processing.ExtractImageURL(item.Description)
	}
	if image == "" && item.Image != nil {
		image = item.Image.URL
	}
	image = processing.ResolveURL(image, entry.URL)
	if image == "" {
		image = processing.PlaceholderImageURL
	}

	date := now
	switch {
	case item.PublishedParsed != nil:
		date = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		date = *item.UpdatedParsed
	}

	return models.NewsRecord{
		ID:       processing.RecordID(entry.Name, link),
		Title:    title,
		Source:   entry.Name,
		Date:     processing.NormalizeDate(date),
		Content:  content,
		ImageURL: image,
		Location: processing.DetectLocation(title + " " + content),
		URL:      link,
	}
}

// ExtractPage maps every node matching the entry selector to a candidate record. Missing
// sub-elements produce empty or placeholder values instead of failing the page.
func ExtractPage(entry Entry, doc *goquery.Document, now time.Time) []models.NewsRecord {
	if doc == nil {
		return nil
	}

	var out []models.NewsRecord
	doc.Find(entry.Selector).Each(func(_ int, node *goquery.Selection) {
		out = append(out, pageRecord(entry, node, now))
	})
	return out
}

func pageRecord(entry Entry, node *goquery.Selection, now time.Time) models.NewsRecord {
	title := processing.SquashSpaces(node.Find(pageTitleSelector).First().Text())
	paragraphs := node.Find(pageBodySelector).Map(func(_ int, p *goquery.Selection) string {
		return p.Text()
	})
	content := processing.SquashSpaces(strings.Join(paragraphs, " "))

	href, ok := node.Find(pageLinkSelector).First().Attr("href")
	if !ok {
		href, _ = node.Attr("href")
	}
	link := processing.ResolveURL(href, entry.URL)

	src, _ := node.Find(pageImageSelector).First().Attr("src")
	image := processing.ResolveURL(src, entry.URL)
	if image == "" {
		image = processing.PlaceholderImageURL
	}

	return models.NewsRecord{
		ID:       processing.RecordID(entry.Name, link),
		Title:    title,
		Source:   entry.Name,
		Date:     processing.NormalizeDate(now),
		Content:  content,
		ImageURL: image,
		Location: processing.DetectLocation(processing.SquashSpaces(node.Text())),
		URL:      link,
	}
}

// plainText turns an HTML fragment into squashed plain text.
func plainText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return processing.SquashSpaces(html.UnescapeString(fragment))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return processing.SquashSpaces(html.UnescapeString(fragment))
	}
	return processing.SquashSpaces(doc.Text())
}
