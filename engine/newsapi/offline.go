package newsapi

import (
	_ "embed"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WessleyAI/technews/engine/domain"
	"github.com/WessleyAI/technews/engine/normalize"
)

//go:embed offline.yaml
var offlineYAML []byte

type offlineRecord struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Content     string        `yaml:"content"`
	URL         string        `yaml:"url"`
	Image       string        `yaml:"image"`
	Age         time.Duration `yaml:"age"`
	Source      struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"source"`
}

var loadOffline = sync.OnceValues(func() ([]offlineRecord, error) {
	return parseOffline(offlineYAML)
})

func parseOffline(data []byte) ([]offlineRecord, error) {
	var recs []offlineRecord
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: offline dataset: %v", domain.ErrMalformedResponse, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: offline dataset is empty", domain.ErrMalformedResponse)
	}
	return recs, nil
}

// offlineRaw renders the dataset as provider records, aged relative to now.
func offlineRaw(now time.Time) (domain.RawResponse, error) {
	recs, err := loadOffline()
	if err != nil {
		return domain.RawResponse{}, err
	}
	raws := make([]domain.RawArticle, len(recs))
	for i, r := range recs {
		raws[i] = domain.RawArticle{
			Title:       domain.Text(r.Title),
			Description: domain.Text(r.Description),
			Content:     domain.Text(r.Content),
			URL:         domain.Text(r.URL),
			Image:       domain.Text(r.Image),
			PublishedAt: domain.Text(now.Add(-r.Age).UTC().Format("2006-01-02T15:04:05.000Z07:00")),
			Source:      &domain.RawSource{Name: domain.Text(r.Source.Name), URL: domain.Text(r.Source.URL)},
		}
	}
	return domain.RawResponse{TotalArticles: len(raws), Articles: raws}, nil
}

// Offline returns the normalized offline dataset.
func Offline(now time.Time) (domain.NewsResponse, error) {
	raw, err := offlineRaw(now)
	if err != nil {
		return domain.NewsResponse{}, err
	}
	articles := normalize.Batch(raw.Articles, now, nil)
	return domain.NewsResponse{TotalArticles: raw.TotalArticles, Articles: articles}, nil
}
