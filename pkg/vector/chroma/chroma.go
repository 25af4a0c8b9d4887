// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/papercomputeco/splice/pkg/vector"
)

const basePath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// mu guards collectionIDs
	mu sync.Mutex

	// collectionIDs caches collection name to Chroma collection id
	collectionIDs map[string]string
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration
}

// NewDriver creates a new Chroma vector driver.
// Collections are resolved lazily on first use.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Driver{
		baseURL: c.URL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:        logger,
		collectionIDs: make(map[string]string),
	}, nil
}

// collectionID resolves a collection name, optionally creating it.
func (d *Driver) collectionID(ctx context.Context, name string, create bool) (string, error) {
	d.mu.Lock()
	id, ok := d.collectionIDs[name]
	d.mu.Unlock()
	if ok {
		return id, nil
	}

	var collection chromaCollection
	status, err := d.do(ctx, http.MethodGet, basePath+"/"+name, nil, &collection)
	switch {
	case err == nil:
	case status == http.StatusNotFound && create:
		if _, err := d.do(ctx, http.MethodPost, basePath, map[string]string{"name": name}, &collection); err != nil {
			return "", fmt.Errorf("creating collection %q: %w", name, err)
		}
	case status == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	default:
		return "", fmt.Errorf("getting collection %q: %w", name, err)
	}

	d.mu.Lock()
	d.collectionIDs[name] = collection.ID
	d.mu.Unlock()

	return collection.ID, nil
}

// do sends a JSON request and decodes a JSON response into out.
// It returns the HTTP status code alongside any error.
func (d *Driver) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// Add stores documents with their embeddings, creating the collection if needed.
func (d *Driver) Add(ctx context.Context, collection string, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	id, err := d.collectionID(ctx, collection, true)
	if err != nil {
		return err
	}

	reqBody := chromaAddRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		reqBody.IDs[i] = doc.ID
		reqBody.Embeddings[i] = doc.Embedding
		reqBody.Metadatas[i] = doc.Metadata
	}

	if _, err := d.do(ctx, http.MethodPost, basePath+"/"+id+"/upsert", reqBody, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma",
		"collection", collection,
		"count", len(docs),
	)

	return nil
}

// Page reads a collection with Chroma's limit/offset get API. The cursor is
// the offset of the next page.
func (d *Driver) Page(ctx context.Context, collection string, cursor string, limit int) (vector.Page, error) {
	if limit <= 0 {
		return vector.Page{}, fmt.Errorf("page limit must be positive, got %d", limit)
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return vector.Page{}, fmt.Errorf("%w: %q", vector.ErrInvalidCursor, cursor)
		}
		offset = n
	}

	id, err := d.collectionID(ctx, collection, false)
	if err != nil {
		return vector.Page{}, err
	}

	// Ask for one extra document to learn whether another page follows.
	reqBody := chromaGetRequest{
		Limit:   limit + 1,
		Offset:  offset,
		Include: []string{"metadatas", "embeddings"},
	}

	var getResp chromaGetResponse
	if _, err := d.do(ctx, http.MethodPost, basePath+"/"+id+"/get", reqBody, &getResp); err != nil {
		return vector.Page{}, fmt.Errorf("getting documents: %w", err)
	}

	ids := getResp.IDs
	page := vector.Page{}
	if len(ids) > limit {
		ids = ids[:limit]
		page.NextCursor = strconv.Itoa(offset + limit)
	}

	page.Documents = make([]vector.Document, len(ids))
	for i, docID := range ids {
		page.Documents[i] = vector.Document{ID: docID}
		if i < len(getResp.Metadatas) {
			page.Documents[i].Metadata = getResp.Metadatas[i]
		}
		if i < len(getResp.Embeddings) {
			page.Documents[i].Embedding = getResp.Embeddings[i]
		}
	}

	d.logger.Debug("read chroma page",
		"collection", collection,
		"offset", offset,
		"count", len(page.Documents),
	)

	return page, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}
