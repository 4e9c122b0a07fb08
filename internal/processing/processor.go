package processing

import (
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/DeafMist/fire-radar/internal/models"
)

// PlaceholderImageURL is used when no image can be discovered for a record.
const PlaceholderImageURL = "https://images.unsplash.com/photo-1523875194681-bedd468c58bf"

// FallbackLocation is the country-level location used when no gazetteer entry matches.
const FallbackLocation = "Algérie"

// Gazetteer lists recognized place names. Order matters: the first match wins.
var Gazetteer = []string{
	"Alger", "Oran", "Constantine", "Batna", "Djelfa", "Sétif", "Annaba", "Sidi Bel Abbès",
	"Biskra", "Tébessa", "Tizi Ouzou", "Béjaïa", "Médéa",
}

var containedKeywords = []string{
	"maîtrisé", "maitrisé", "circonscrit", "éteint", "eteint", "sous contrôle",
	"was contained", "been contained", "fully contained", "now contained",
	"under control", "extinguished", "containment",
	"إخماد", "السيطرة",
}

var preventionKeywords = []string{
	"prévention", "prevention", "sensibilisation", "awareness", "campagne", "campaign",
	"exercice", "training", "formation des", "séance de formation", "session de formation",
	"vigilance",
	"الوقاية", "تحسيس",
}

// recordNamespace seeds name-based record ids.
var recordNamespace = uuid.MustParse("5b0f3c1e-7d4a-4e53-9a43-2f6a1c0de7b1")

var (
	urlRegex   = regexp.MustCompile(`https?://[^\s]+`)
	imgRegex   = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"'>]+)["']`)
	whitespace = regexp.MustCompile(`\s+`)

	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "and": {}, "with": {},
	"le": {}, "la": {}, "les": {}, "des": {}, "une": {}, "dans": {}, "pour": {}, "avec": {},
	"sur": {}, "par": {}, "est": {}, "sont": {}, "aux": {}, "cette": {},
	"في": {}, "من": {}, "على": {}, "إلى": {}, "التي": {}, "الذي": {},
}

// Classify assigns a category from the title and content. Contained keywords take
// precedence over prevention keywords; anything else is active.
func Classify(title, content string) models.Category {
	text := strings.ToLower(title + " " + content)
	if containsAny(text, containedKeywords) {
		return models.CategoryContained
	}
	if containsAny(text, preventionKeywords) {
		return models.CategoryPrevention
	}
	return models.CategoryActive
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DetectLocation returns the first gazetteer entry found in text, or FallbackLocation.
func DetectLocation(text string) string {
	for _, place := range Gazetteer {
		if strings.Contains(text, place) {
			return place
		}
	}
	return FallbackLocation
}

// ExtractImageURL returns the src of the first <img> tag in the HTML fragment, or "".
func ExtractImageURL(fragment string) string {
	if fragment == "" {
		return ""
	}
	m := imgRegex.FindStringSubmatch(fragment)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// RecordID derives a stable id from the source name and the canonical article URL, so the
// same upstream item keeps its id across refresh cycles.
func RecordID(source, rawURL string) string {
	return uuid.NewSHA1(recordNamespace, []byte(source+"|"+CanonicalURL(rawURL))).String()
}

// CanonicalURL lower-cases scheme and host and drops the fragment.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

// ResolveURL resolves a possibly relative reference against base. It returns "" when raw
// is empty and raw unchanged when either side fails to parse.
func ResolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}

// NormalizeDate converts t to UTC truncated to the second.
func NormalizeDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// SquashSpaces collapses runs of whitespace into single spaces and trims the result.
func SquashSpaces(input string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	return SquashSpaces(decoded)
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// GenerateTitleFromText creates a title from the first sentence or first N words of text.
// Returns empty string if text is empty.
func GenerateTitleFromText(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	textWithoutURLs := RemoveURLs(text)

	sentenceEnd := strings.IndexAny(textWithoutURLs, ".!?")
	var firstSentence string
	if sentenceEnd > 0 {
		firstSentence = strings.TrimSpace(textWithoutURLs[:sentenceEnd])
	} else {
		firstSentence = textWithoutURLs
	}

	words := strings.Fields(firstSentence)
	if len(words) == 0 {
		return ""
	}

	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}

	return strings.Join(words, " ")
}
