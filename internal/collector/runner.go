package collector

import (
	"context"
	"sync"
	"time"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
	"github.com/jeromwolf/FluxNews/internal/service/dedup"
	"github.com/jeromwolf/FluxNews/internal/service/impact"
	"github.com/jeromwolf/FluxNews/pkg/logger"
	"github.com/jeromwolf/FluxNews/pkg/metrics"
)

// Runner polls every source on an interval and pushes new articles
// through dedup, storage, and impact analysis.
type Runner struct {
	sources  []Source
	interval time.Duration

	dedup    *dedup.Service
	articles repository.ArticleRepository
	pipeline *impact.Pipeline

	metrics *metrics.Metrics
	logger  *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type RunnerConfig struct {
	Sources  []Source
	Interval time.Duration
	Dedup    *dedup.Service
	Articles repository.ArticleRepository
	Pipeline *impact.Pipeline
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

func NewRunner(cfg RunnerConfig) *Runner {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Runner{
		sources:  cfg.Sources,
		interval: interval,
		dedup:    cfg.Dedup,
		articles: cfg.Articles,
		pipeline: cfg.Pipeline,
		metrics:  cfg.Metrics,
		logger:   log,
	}
}

// Start runs one collection cycle immediately, then on every tick.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Collect(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Collect(ctx)
			}
		}
	}()
	r.logger.Info("collector started",
		"sources", len(r.sources), "interval", r.interval.String())
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("collector stopped")
}

// Collect runs one full cycle: fetch all sources concurrently, filter
// duplicates, persist what survives, and score it.
func (r *Runner) Collect(ctx context.Context) {
	fetched := r.fetchAll(ctx)
	if len(fetched) == 0 {
		return
	}

	unique := r.dedup.FilterDuplicates(fetched)
	if r.metrics != nil {
		r.metrics.ArticlesDuplicate.WithLabelValues("seen").
			Add(float64(len(fetched) - len(unique)))
	}
	beforeStore := len(unique)
	unique = r.filterPersisted(ctx, unique)
	if r.metrics != nil {
		r.metrics.ArticlesDuplicate.WithLabelValues("persisted").
			Add(float64(beforeStore - len(unique)))
	}
	merged := r.dedup.MergeSimilarArticles(unique)
	if len(merged) == 0 {
		r.logger.Debug("collection cycle produced no new articles",
			"fetched", len(fetched))
		return
	}

	saved, err := r.articles.CreateBatch(ctx, merged)
	if err != nil {
		r.logger.Error(err, "persisting articles", "count", len(merged))
		return
	}
	if r.metrics != nil {
		r.metrics.ArticlesAdmitted.Add(float64(saved))
	}
	r.logger.Info("collection cycle complete",
		"fetched", len(fetched), "unique", len(merged), "saved", saved)

	r.pipeline.AnalyzeBatch(ctx, merged)
}

func (r *Runner) fetchAll(ctx context.Context) []*model.Article {
	var (
		mu  sync.Mutex
		all []*model.Article
		wg  sync.WaitGroup
	)
	for _, src := range r.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			articles, err := src.Fetch(ctx)
			if err != nil {
				r.logger.Error(err, "source fetch failed", "source", src.Name())
				if r.metrics != nil {
					r.metrics.CollectionFailures.WithLabelValues(src.Name()).Inc()
				}
				return
			}
			if r.metrics != nil {
				r.metrics.ArticlesCollected.WithLabelValues(src.Name()).
					Add(float64(len(articles)))
			}
			mu.Lock()
			all = append(all, articles...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return all
}

// filterPersisted drops articles already in storage. The in-memory
// dedup state does not survive restarts; the store does.
func (r *Runner) filterPersisted(ctx context.Context, articles []*model.Article) []*model.Article {
	if len(articles) == 0 {
		return articles
	}
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	existing, err := r.articles.ExistingIDs(ctx, ids)
	if err != nil {
		r.logger.Error(err, "checking existing article ids")
		return articles
	}
	fresh := articles[:0]
	for _, a := range articles {
		if !existing[a.ID] {
			fresh = append(fresh, a)
		}
	}
	return fresh
}
