package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/samber/lo"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/pkg/logger"
)

const (
	// DefaultSimilarityThreshold is the title-similarity ratio above which
	// two articles are considered the same story.
	DefaultSimilarityThreshold = 0.85

	// contentHashLength is how much of the body feeds the content hash.
	contentHashLength = 500
)

// trackingParams are stripped during URL normalization; any utm_* prefix
// is stripped as well.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
}

// Service decides which freshly collected articles are new, which are
// exact duplicates, and which are near-duplicates to merge. Safe for
// concurrent use.
type Service struct {
	threshold float64
	metric    *metrics.SorensenDice
	logger    *logger.Logger

	mu         sync.Mutex
	seenURLs   map[string]bool
	seenHashes map[string]bool
	seenTitles []string
	filtered   int
}

func NewService(threshold float64, log *logger.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		threshold:  threshold,
		metric:     metrics.NewSorensenDice(),
		logger:     log,
		seenURLs:   make(map[string]bool),
		seenHashes: make(map[string]bool),
	}
}

// NormalizeURL lower-cases the URL, drops tracking query parameters,
// re-sorts the survivors, and strips the trailing slash. Two URLs that
// normalize identically are duplicates regardless of surface form.
// Unparseable input is returned unmodified rather than failing.
func NormalizeURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	u, err := url.Parse(lower)
	if err != nil || u.Host == "" {
		return rawURL
	}

	kept := url.Values{}
	for key, values := range u.Query() {
		if strings.HasPrefix(key, "utm_") || trackingParams[key] {
			continue
		}
		if len(values) > 0 {
			kept.Set(key, values[0])
		}
	}

	normalized := fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
	if len(kept) > 0 {
		keys := make([]string, 0, len(kept))
		for k := range kept {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + kept.Get(k)
		}
		normalized += "?" + strings.Join(pairs, "&")
	}
	return strings.TrimRight(normalized, "/")
}

// normalizeTitle lower-cases, strips non-alphanumerics, and collapses
// whitespace so similarity compares words, not punctuation.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleSimilarity returns the similarity ratio of two normalized titles.
func (s *Service) TitleSimilarity(a, b string) float64 {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return strutil.Similarity(na, nb, s.metric)
}

// ContentHash hashes the title plus the first 500 bytes of the body
// (falling back to the summary) to catch syndicated copies with
// different URLs.
func ContentHash(a *model.Article) string {
	content := a.Title
	body := a.Content()
	if len(body) > contentHashLength {
		body = body[:contentHashLength]
	}
	content += body
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// IsDuplicate checks the article against everything seen so far, in
// order: normalized URL, content hash, then title similarity. The first
// matching rule wins and is reported as the reason.
func (s *Service) IsDuplicate(a *model.Article) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDuplicateLocked(a)
}

func (s *Service) isDuplicateLocked(a *model.Article) (bool, string) {
	if s.seenURLs[NormalizeURL(a.URL)] {
		return true, "duplicate_url"
	}
	if s.seenHashes[ContentHash(a)] {
		return true, "duplicate_content"
	}
	if normalizeTitle(a.Title) == "" {
		// Nothing to compare; degrade to unique rather than failing.
		return false, "unique"
	}
	for _, seen := range s.seenTitles {
		if sim := s.TitleSimilarity(a.Title, seen); sim >= s.threshold {
			return true, fmt.Sprintf("similar_title_%.2f", sim)
		}
	}
	return false, "unique"
}

// Add records an admitted article in the seen sets.
func (s *Service) Add(a *model.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(a)
}

func (s *Service) addLocked(a *model.Article) {
	s.seenURLs[NormalizeURL(a.URL)] = true
	s.seenHashes[ContentHash(a)] = true
	if t := a.Title; t != "" {
		s.seenTitles = append(s.seenTitles, t)
	}
}

// FilterDuplicates admits articles in input order; each admitted article
// joins the seen set immediately, so the first-seen article wins within a
// batch and re-collected articles are dropped on later calls.
func (s *Service) FilterDuplicates(articles []*model.Article) []*model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()

	unique := make([]*model.Article, 0, len(articles))
	duplicates := 0
	for _, a := range articles {
		isDup, reason := s.isDuplicateLocked(a)
		if isDup {
			duplicates++
			s.filtered++
			s.logger.Debug("filtered duplicate article", "title", a.Title, "reason", reason)
			continue
		}
		unique = append(unique, a)
		s.addLocked(a)
	}

	s.logger.Info("deduplicated batch", "total", len(articles), "duplicates", duplicates)
	return unique
}

// MergeSimilarArticles groups articles whose titles are pairwise similar
// above the threshold, scanning forward from each unprocessed article.
// Grouping is deliberately non-transitive: A and C both similar to B but
// not to each other end up in B's group only if the forward scan pairs
// them there. The member with the longest body represents the group and
// records the other sources and a duplicate count.
func (s *Service) MergeSimilarArticles(articles []*model.Article) []*model.Article {
	merged := make([]*model.Article, 0, len(articles))
	processed := make([]bool, len(articles))

	for i, a := range articles {
		if processed[i] {
			continue
		}
		group := []*model.Article{a}
		processed[i] = true

		for j := i + 1; j < len(articles); j++ {
			if processed[j] {
				continue
			}
			if s.TitleSimilarity(a.Title, articles[j].Title) >= s.threshold {
				group = append(group, articles[j])
				processed[j] = true
			}
		}

		if len(group) == 1 {
			merged = append(merged, a)
			continue
		}

		best := lo.MaxBy(group, func(x, y *model.Article) bool {
			return len(x.Content()) > len(y.Content())
		})
		best.MergedSources = lo.Uniq(lo.Map(group, func(g *model.Article, _ int) string {
			return g.Source
		}))
		best.DuplicateCount = len(group)
		merged = append(merged, best)
	}

	return merged
}

// Stats reports seen-set sizes and the running duplicate count.
type Stats struct {
	CachedURLs   int `json:"cached_urls"`
	CachedTitles int `json:"cached_titles"`
	CachedHashes int `json:"cached_hashes"`
	Filtered     int `json:"filtered"`
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		CachedURLs:   len(s.seenURLs),
		CachedTitles: len(s.seenTitles),
		CachedHashes: len(s.seenHashes),
		Filtered:     s.filtered,
	}
}

// Clear resets the seen sets.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenURLs = make(map[string]bool)
	s.seenHashes = make(map[string]bool)
	s.seenTitles = nil
}
