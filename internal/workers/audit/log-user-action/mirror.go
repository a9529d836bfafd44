// internal/workers/audit/log-user-action/mirror.go
package loguseraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"entitlement-service/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ESMirror copies audit entries into an Elasticsearch index.
type ESMirror struct {
	client *elasticsearch.Client
	index  string
}

func NewESMirror(client *elasticsearch.Client, index string) *ESMirror {
	return &ESMirror{client: client, index: index}
}

func (m *ESMirror) Index(ctx context.Context, entry models.AuditLogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      m.index,
		DocumentID: entry.ID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, m.client)
	if err != nil {
		return fmt.Errorf("elasticsearch index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch index error: %s", res.Status())
	}
	return nil
}
