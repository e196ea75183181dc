package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/biaslens/evalcore/vault"
)

// Sourcetype stamped on every shipped event.
const logSearchSourcetype = "biaslens:evidence"

// Default port conventions: the HTTP event collector listens on 8088, the
// management API (session login, simple receiver) on 8089.
const (
	defaultCollectorPort  = "8088"
	defaultManagementPort = "8089"
)

// LogSearchCollector ships evidence to a Splunk-style log-search engine,
// either through the HTTP event collector with a token or through the
// management API with a basic-auth session.
type LogSearchCollector struct {
	collectorURL  string
	managementURL string

	token    string
	username string
	password string
	index    string

	httpClient *http.Client
}

// NewLogSearch builds a collector from decrypted credentials. The
// configured endpoint may name either port; both conventions are derived
// from it.
func NewLogSearch(creds *vault.StoredCredentials) (*LogSearchCollector, error) {
	if creds.Endpoint == "" {
		return nil, Classify(400, "log search endpoint is required", nil)
	}
	collectorURL, managementURL, err := deriveLogSearchEndpoints(creds.Endpoint)
	if err != nil {
		return nil, Classify(400, "log search endpoint is not a valid URL", err)
	}

	return &LogSearchCollector{
		collectorURL:  collectorURL,
		managementURL: managementURL,
		token:         creds.CollectorToken,
		username:      creds.Username,
		password:      creds.Password,
		index:         creds.Index,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// deriveLogSearchEndpoints maps a configured endpoint onto the collector and
// management base URLs.
func deriveLogSearchEndpoints(endpoint string) (string, string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + endpoint)
		if err != nil {
			return "", "", err
		}
	}

	host := u.Hostname()
	scheme := u.Scheme

	collectorPort := defaultCollectorPort
	managementPort := defaultManagementPort
	switch u.Port() {
	case defaultCollectorPort, "":
		// Collector convention or bare host: defaults stand.
	case defaultManagementPort:
		// Management convention: defaults stand, endpoint named the other side.
	default:
		// Custom port: assume it is the collector and keep management default.
		collectorPort = u.Port()
	}

	return fmt.Sprintf("%s://%s:%s", scheme, host, collectorPort),
		fmt.Sprintf("%s://%s:%s", scheme, host, managementPort), nil
}

// StorageType implements Collector.
func (c *LogSearchCollector) StorageType() string { return StorageLogSearch }

// StoreEvidence implements Collector.
func (c *LogSearchCollector) StoreEvidence(ctx context.Context, data EvidenceData) (ReferenceInfo, error) {
	if c.token != "" {
		return c.storeViaCollector(ctx, data)
	}
	return c.storeViaManagement(ctx, data)
}

func (c *LogSearchCollector) storeViaCollector(ctx context.Context, data EvidenceData) (ReferenceInfo, error) {
	event := map[string]any{
		"event":      data,
		"sourcetype": logSearchSourcetype,
		"source":     "biaslens",
	}
	if c.index != "" {
		event["index"] = c.index
	}
	body, err := json.Marshal(event)
	if err != nil {
		return ReferenceInfo{}, Classify(400, "failed to encode collector event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectorURL+"/services/collector/event", bytes.NewReader(body))
	if err != nil {
		return ReferenceInfo{}, Classify(0, "failed to build collector request", err)
	}
	req.Header.Set("Authorization", "Splunk "+c.token)
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, "event collector write"); err != nil {
		return ReferenceInfo{}, err
	}

	return ReferenceInfo{
		ReferenceID:     data.ReferenceID,
		StorageLocation: fmt.Sprintf("%s sourcetype=%s referenceId=%s", c.collectorURL, logSearchSourcetype, data.ReferenceID),
		StorageType:     StorageLogSearch,
	}, nil
}

func (c *LogSearchCollector) storeViaManagement(ctx context.Context, data EvidenceData) (ReferenceInfo, error) {
	sessionKey, err := c.login(ctx)
	if err != nil {
		return ReferenceInfo{}, err
	}

	body, err := json.Marshal(data)
	if err != nil {
		return ReferenceInfo{}, Classify(400, "failed to encode event", err)
	}

	endpoint := c.managementURL + "/services/receivers/simple?sourcetype=" + url.QueryEscape(logSearchSourcetype)
	if c.index != "" {
		endpoint += "&index=" + url.QueryEscape(c.index)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ReferenceInfo{}, Classify(0, "failed to build receiver request", err)
	}
	req.Header.Set("Authorization", "Splunk "+sessionKey)
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, "simple receiver write"); err != nil {
		return ReferenceInfo{}, err
	}

	return ReferenceInfo{
		ReferenceID:     data.ReferenceID,
		StorageLocation: fmt.Sprintf("%s sourcetype=%s referenceId=%s", c.managementURL, logSearchSourcetype, data.ReferenceID),
		StorageType:     StorageLogSearch,
	}, nil
}

// login authenticates against the session login endpoint and returns the
// session key.
func (c *LogSearchCollector) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("output_mode", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.managementURL+"/services/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", Classify(0, "failed to build login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Classify(0, "session login failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		collErr := Classify(resp.StatusCode, "session login rejected: "+strings.TrimSpace(string(raw)), nil)
		collErr.RateLimit = RateLimitFromHeaders(resp.Header)
		return "", collErr
	}

	var parsed struct {
		SessionKey string `json:"sessionKey"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.SessionKey == "" {
		return "", Classify(0, "session login response had no session key", err)
	}
	return parsed.SessionKey, nil
}

// TestConnection implements Collector: a token config checks the collector
// health endpoint; a basic-auth config performs a login.
func (c *LogSearchCollector) TestConnection(ctx context.Context) error {
	if c.token == "" {
		_, err := c.login(ctx)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectorURL+"/services/collector/health", nil)
	if err != nil {
		return Classify(0, "failed to build health request", err)
	}
	req.Header.Set("Authorization", "Splunk "+c.token)
	return c.do(req, "collector health check")
}

func (c *LogSearchCollector) do(req *http.Request, op string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Classify(0, "log search "+op+" failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	collErr := Classify(resp.StatusCode, fmt.Sprintf("log search %s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	collErr.RateLimit = RateLimitFromHeaders(resp.Header)
	return collErr
}
