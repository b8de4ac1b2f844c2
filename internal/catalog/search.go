package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
)

// searchIDs выполняет multi_match по индексу товаров и возвращает id
// в порядке релевантности. Сами товары потом читаются из БД.
func searchIDs(ctx context.Context, es *elasticsearch.Client, index, query string, limit int) ([]int64, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^2", "model", "description"},
				"fuzziness": "AUTO",
			},
		},
		"size":    limit,
		"_source": []string{"product_id"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("catalog: encode search query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: es search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("catalog: es search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ProductID int64 `json:"product_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("catalog: decode es response: %w", err)
	}

	ids := make([]int64, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		ids = append(ids, hit.Source.ProductID)
	}
	return ids, nil
}
