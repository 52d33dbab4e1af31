package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
	"security-monitor/internal/util"
)

// ElasticSink indexes each event as its own document in a per-month index
// (<prefix>-YYYY.MM), document id = event id.
type ElasticSink struct {
	client      *elasticsearch.Client
	indexPrefix string
}

func NewElasticSink(cfg config.ElasticConfig) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	util.Info("Elasticsearch sink initialized",
		util.String("url", cfg.URL),
		util.String("index_prefix", cfg.IndexPrefix),
	)

	return &ElasticSink{
		client:      client,
		indexPrefix: cfg.IndexPrefix,
	}, nil
}

func (s *ElasticSink) Name() string { return "elasticsearch" }

func (s *ElasticSink) Send(ctx context.Context, evt *model.SecurityEvent) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(evt); err != nil {
		return fmt.Errorf("failed to encode event document: %w", err)
	}

	index := fmt.Sprintf("%s-%s", s.indexPrefix, time.Now().UTC().Format("2006.01"))

	res, err := s.client.Index(
		index,
		&buf,
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(evt.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}
