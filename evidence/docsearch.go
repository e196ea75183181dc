package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/biaslens/evalcore/vault"
)

// defaultEvidenceIndex is used when the stored config names no index.
const defaultEvidenceIndex = "biaslens-evidence"

// DocSearchCollector ships evidence to an Elasticsearch-compatible
// document-search engine: one document per captured iteration, addressed by
// its reference id so re-shipment is idempotent.
type DocSearchCollector struct {
	client *elasticsearch.Client
	index  string
}

// NewDocSearch builds a collector from decrypted credentials. Auth is either
// an API key or basic username/password.
func NewDocSearch(creds *vault.StoredCredentials) (*DocSearchCollector, error) {
	if creds.Endpoint == "" {
		return nil, Classify(400, "document search endpoint is required", nil)
	}

	cfg := elasticsearch.Config{
		Addresses: []string{creds.Endpoint},
	}
	if creds.APIKey != "" {
		cfg.APIKey = creds.APIKey
	} else {
		cfg.Username = creds.Username
		cfg.Password = creds.Password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, Classify(0, "failed to initialize document search client", err)
	}

	index := creds.Index
	if index == "" {
		index = defaultEvidenceIndex
	}
	return &DocSearchCollector{client: client, index: index}, nil
}

// StorageType implements Collector.
func (c *DocSearchCollector) StorageType() string { return StorageDocumentSearch }

// StoreEvidence implements Collector: PUT /{index}/_doc/{refId}. The index
// is created implicitly on first write when absent.
func (c *DocSearchCollector) StoreEvidence(ctx context.Context, data EvidenceData) (ReferenceInfo, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return ReferenceInfo{}, Classify(400, "failed to encode evidence document", err)
	}

	res, err := c.client.Index(
		c.index,
		bytes.NewReader(body),
		c.client.Index.WithDocumentID(data.ReferenceID),
		c.client.Index.WithContext(ctx),
	)
	if err != nil {
		return ReferenceInfo{}, Classify(0, "document search write failed", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return ReferenceInfo{}, c.classifyResponse("document write", res)
	}
	io.Copy(io.Discard, res.Body)

	return ReferenceInfo{
		ReferenceID:     data.ReferenceID,
		StorageLocation: fmt.Sprintf("%s/_doc/%s", c.index, data.ReferenceID),
		StorageType:     StorageDocumentSearch,
	}, nil
}

// TestConnection implements Collector: the cluster must not be red, and the
// evidence index is HEAD-checked. A missing index is acceptable since the
// first write creates it; an unreachable or red cluster is fatal.
func (c *DocSearchCollector) TestConnection(ctx context.Context) error {
	health, err := c.client.Cluster.Health(c.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return Classify(0, "cluster health check failed", err)
	}
	defer health.Body.Close()

	if health.IsError() {
		return c.classifyResponse("cluster health", health)
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(health.Body).Decode(&parsed); err != nil {
		return Classify(0, "cluster health response unreadable", err)
	}
	if parsed.Status == "red" {
		return Classify(503, "cluster health is red", nil)
	}

	exists, err := c.client.Indices.Exists([]string{c.index}, c.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return Classify(0, "index existence check failed", err)
	}
	defer exists.Body.Close()
	io.Copy(io.Discard, exists.Body)

	// 404 on the index is recoverable: the first document write creates it.
	if exists.IsError() && exists.StatusCode != 404 {
		return c.classifyResponse("index check", exists)
	}
	return nil
}

func (c *DocSearchCollector) classifyResponse(op string, res *esapi.Response) *CollectorError {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	collErr := Classify(res.StatusCode,
		fmt.Sprintf("document search %s returned %d: %s", op, res.StatusCode, strings.TrimSpace(string(raw))), nil)
	collErr.RateLimit = RateLimitFromHeaders(res.Header)
	return collErr
}
