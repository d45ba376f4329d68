package impact

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/service/sentiment"
)

// fakeCompanies is an in-memory company graph.
type fakeCompanies struct {
	companies []*model.Company
	relations map[int64][]*model.CompanyRelation
}

func (f *fakeCompanies) All(context.Context) ([]*model.Company, error) {
	return f.companies, nil
}

func (f *fakeCompanies) RelationshipBetween(_ context.Context, a, b int64) (model.RelationshipType, error) {
	for _, rel := range f.relations[a] {
		if rel.RelatedID == b {
			return rel.Type, nil
		}
	}
	return model.RelationshipNone, nil
}

func (f *fakeCompanies) RelatedCompanies(_ context.Context, companyID int64) ([]*model.CompanyRelation, error) {
	return f.relations[companyID], nil
}

func (f *fakeCompanies) Watchers(context.Context, int64) ([]string, error) {
	return nil, nil
}

// fakeArticles records persisted scores.
type fakeArticles struct {
	mu     sync.Mutex
	scores []*model.ImpactScore
}

func (f *fakeArticles) CreateBatch(context.Context, []*model.Article) (int, error) { return 0, nil }

func (f *fakeArticles) ExistingIDs(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeArticles) Get(context.Context, string) (*model.Article, error) { return nil, nil }

func (f *fakeArticles) SaveImpactScores(_ context.Context, scores []*model.ImpactScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, scores...)
	return nil
}

// fakeNotifier records trigger calls.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeNotifier) HighImpactNotification(_ context.Context, _ *model.Article, company *model.Company, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, company.ID)
	return nil
}

func testGraph() *fakeCompanies {
	return &fakeCompanies{
		companies: []*model.Company{
			{ID: 1, Name: "Samsung Electronics", Ticker: "005930", Aliases: []string{"Samsung"}},
			{ID: 2, Name: "SK Hynix", Ticker: "000660"},
			{ID: 3, Name: "Hyundai Motor", Ticker: "005380"},
		},
		relations: map[int64][]*model.CompanyRelation{
			1: {{CompanyID: 1, RelatedID: 2, Type: model.RelationshipCompetitor}},
		},
	}
}

func testPipeline(graph *fakeCompanies, store *fakeArticles, notifier Notifier) *Pipeline {
	return NewPipeline(NewCalculator(nil), sentiment.NewRuleBased(), graph, store, notifier, nil, nil)
}

func recallArticle() *model.Article {
	return &model.Article{
		ID:          "article-1",
		URL:         "https://reuters.example.com/samsung-recall",
		Title:       "Samsung Electronics announces major recall",
		Body:        "Samsung Electronics said it will recall devices. Samsung shares fell.",
		Source:      "reuters",
		PublishedAt: time.Now().Add(-time.Hour),
		CollectedAt: time.Now(),
	}
}

func TestAnalyzeArticleScoresMentionedAndRelated(t *testing.T) {
	graph := testGraph()
	store := &fakeArticles{}
	p := testPipeline(graph, store, nil)

	scores, err := p.AnalyzeArticle(context.Background(), recallArticle())
	require.NoError(t, err)

	byCompany := map[int64]*model.ImpactScore{}
	for _, s := range scores {
		byCompany[s.CompanyID] = s
	}

	require.Contains(t, byCompany, int64(1), "mentioned company must be scored")
	require.Contains(t, byCompany, int64(2), "competitor must receive a ripple score")
	assert.NotContains(t, byCompany, int64(3), "unmentioned, unrelated company must not be scored")

	direct := byCompany[1]
	ripple := byCompany[2]
	assert.Equal(t, model.ImpactDirect, direct.ImpactType)
	assert.Equal(t, model.ImpactIndirect, ripple.ImpactType)
	assert.Greater(t, direct.FinalScore, ripple.FinalScore)

	// Scores are persisted as computed.
	assert.Equal(t, scores, store.scores)
}

func TestAnalyzeArticleNoMentions(t *testing.T) {
	p := testPipeline(testGraph(), &fakeArticles{}, nil)

	article := recallArticle()
	article.Title = "Weather forecast for the weekend"
	article.Body = "Sunny with a chance of rain."

	scores, err := p.AnalyzeArticle(context.Background(), article)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestAnalyzeArticleTriggersNotifier(t *testing.T) {
	notifier := &fakeNotifier{}
	p := testPipeline(testGraph(), &fakeArticles{}, notifier)

	scores, err := p.AnalyzeArticle(context.Background(), recallArticle())
	require.NoError(t, err)
	assert.Len(t, notifier.calls, len(scores))
	assert.Contains(t, notifier.calls, int64(1))
}

func TestRippleSkipsMentionedCompanies(t *testing.T) {
	graph := testGraph()
	// SK Hynix is both mentioned and a competitor of Samsung; it must be
	// scored exactly once, from its own mentions.
	p := testPipeline(graph, &fakeArticles{}, nil)

	article := recallArticle()
	article.Body += " SK Hynix also commented on the recall."

	scores, err := p.AnalyzeArticle(context.Background(), article)
	require.NoError(t, err)

	count := 0
	for _, s := range scores {
		if s.CompanyID == 2 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClassifyMagnitude(t *testing.T) {
	a := recallArticle()
	assert.Equal(t, model.MagnitudeCritical, classifyMagnitude(a))

	a.Title = "Company faces lawsuit over patents"
	a.Body = "A lawsuit was filed."
	assert.Equal(t, model.MagnitudeMajor, classifyMagnitude(a))

	a.Title = "Company opens new office"
	a.Body = "The office opened today."
	assert.Equal(t, model.MagnitudeModerate, classifyMagnitude(a))
}

func TestCredibilityFor(t *testing.T) {
	assert.Equal(t, 0.9, credibilityFor("Reuters"))
	assert.Equal(t, defaultCredibility, credibilityFor("some blog"))
}

func TestCountMentions(t *testing.T) {
	company := &model.Company{ID: 1, Name: "Samsung Electronics", Ticker: "005930", Aliases: []string{"Samsung"}}
	article := recallArticle()

	mentions, inTitle := countMentions(article, company)
	assert.True(t, inTitle)
	assert.GreaterOrEqual(t, mentions, 3)

	short := &model.Company{ID: 9, Name: "X", Ticker: "X"}
	mentions, inTitle = countMentions(article, short)
	assert.Zero(t, mentions, "single-character names are ignored")
	assert.False(t, inTitle)
}
