// Package search defines the indexing backend contract used by the loader
// and an OpenSearch-backed implementation of it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	opensearchapi "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// ErrorKind discriminates the SearchBackendError subkinds named by the
// error handling design. Only Connection errors, and errors of any kind
// carrying a 429 or 503 status, are retryable (see Error.Retryable).
type ErrorKind uint8

const (
	ErrConnection ErrorKind = iota
	ErrQuery
	ErrIndex
	ErrBulkIndex
	ErrUpdate
	ErrDelete
	ErrIndexCreation
	ErrParse
	ErrSerialization
	ErrInvalidQuery
	ErrNotFound
)

// Error is a tagged search backend error with an explicit retryability
// predicate, in place of exception-style propagation.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("search: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller should retry with backoff:
// connection failures, timeouts, rate-limiting (429) and
// service-unavailable (503) are transient; everything else (validation,
// malformed query, other 4xx) is not.
func (e *Error) Retryable() bool {
	if e.Kind == ErrConnection {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// String names the error kind, matching the SearchBackendError subkinds.
func (k ErrorKind) String() string {
	switch k {
	case ErrConnection:
		return "connection"
	case ErrQuery:
		return "query"
	case ErrIndex:
		return "index"
	case ErrBulkIndex:
		return "bulk_index"
	case ErrUpdate:
		return "update"
	case ErrDelete:
		return "delete"
	case ErrIndexCreation:
		return "index_creation"
	case ErrParse:
		return "parse"
	case ErrSerialization:
		return "serialization"
	case ErrInvalidQuery:
		return "invalid_query"
	case ErrNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// EntityDocument is the search index document for one entity within one
// space, keyed by DocumentKey.
type EntityDocument struct {
	EntityID          string    `json:"entity_id"`
	SpaceID           string    `json:"space_id"`
	Name              *string   `json:"name,omitempty"`
	Description       *string   `json:"description,omitempty"`
	Avatar            *string   `json:"avatar,omitempty"`
	Cover             *string   `json:"cover,omitempty"`
	EntityGlobalScore *float64  `json:"entity_global_score,omitempty"`
	SpaceScore        *float64  `json:"space_score,omitempty"`
	EntitySpaceScore  *float64  `json:"entity_space_score,omitempty"`
	IndexedAt         time.Time `json:"indexed_at"`
}

// Client is the indexing backend contract the loader depends on. It is
// implementation-agnostic so the loader's retry/backoff logic can be
// tested against a fake without a real search cluster.
type Client interface {
	HealthCheck(ctx context.Context) error
	EnsureIndex(ctx context.Context, index string) error
	BulkUpsert(ctx context.Context, index string, docs map[string]EntityDocument) error
	Upsert(ctx context.Context, index, key string, doc EntityDocument) error
	Delete(ctx context.Context, index, key string) error
}

// OpenSearchClient implements Client against an OpenSearch cluster. The
// underlying opensearch.Client is shared across concurrent loader retry
// operations, matching the assumption in the concurrency model that the
// search backend client is safe for concurrent use.
type OpenSearchClient struct {
	client         *opensearch.Client
	requestTimeout time.Duration
}

// NewOpenSearchClient dials addresses with a per-request timeout applied
// to every call the client makes.
func NewOpenSearchClient(addresses []string, requestTimeout time.Duration) (*OpenSearchClient, error) {
	client, err := opensearch.NewClient(opensearch.Config{Addresses: addresses})
	if err != nil {
		return nil, &Error{Kind: ErrConnection, Err: err}
	}
	return &OpenSearchClient{client: client, requestTimeout: requestTimeout}, nil
}

func (c *OpenSearchClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.requestTimeout)
}

// HealthCheck contacts the cluster's root endpoint and reports whether it
// answered. It is the only Client method that does not assume an index
// exists yet, so callers use it to gate startup before EnsureIndex runs.
func (c *OpenSearchClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := opensearchapi.PingRequest{}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatusErr(ErrConnection, res.StatusCode, fmt.Errorf("health check: %s", res.String()))
	}
	return nil
}

// EnsureIndex creates index if it does not already exist. A 400 with an
// already-exists reason is treated as success.
func (c *OpenSearchClient) EnsureIndex(ctx context.Context, index string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	existsReq := opensearchapi.IndicesExistsRequest{Index: []string{index}}
	existsRes, err := existsReq.Do(ctx, c.client)
	if err != nil {
		return &Error{Kind: ErrConnection, Err: err}
	}
	defer existsRes.Body.Close()
	if existsRes.StatusCode == http.StatusOK {
		return nil
	}

	createReq := opensearchapi.IndicesCreateRequest{Index: index}
	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return &Error{Kind: ErrConnection, Err: err}
	}
	defer createRes.Body.Close()
	if createRes.StatusCode == http.StatusBadRequest && strings.Contains(createRes.String(), "resource_already_exists_exception") {
		return nil
	}
	if createRes.IsError() {
		return &Error{Kind: ErrIndexCreation, StatusCode: createRes.StatusCode, Err: fmt.Errorf("create index %q: %s", index, createRes.String())}
	}
	return nil
}

// BulkUpsert performs one bulk request covering every document in docs,
// keyed by their search document key.
func (c *OpenSearchClient) BulkUpsert(ctx context.Context, index string, docs map[string]EntityDocument) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body bytes.Buffer
	for key, doc := range docs {
		meta, err := json.Marshal(map[string]interface{}{
			"update": map[string]interface{}{"_index": index, "_id": key},
		})
		if err != nil {
			return &Error{Kind: ErrSerialization, Err: err}
		}
		payload, err := json.Marshal(map[string]interface{}{"doc": doc, "doc_as_upsert": true})
		if err != nil {
			return &Error{Kind: ErrSerialization, Err: err}
		}
		body.Write(meta)
		body.WriteByte('\n')
		body.Write(payload)
		body.WriteByte('\n')
	}

	req := opensearchapi.BulkRequest{Body: bytes.NewReader(body.Bytes())}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatusErr(ErrBulkIndex, res.StatusCode, fmt.Errorf("bulk upsert: %s", res.String()))
	}
	return nil
}

// Upsert applies one document update, used both for the bulk-failure
// fallback path and for low-frequency single-document writes.
func (c *OpenSearchClient) Upsert(ctx context.Context, index, key string, doc EntityDocument) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(map[string]interface{}{"doc": doc, "doc_as_upsert": true})
	if err != nil {
		return &Error{Kind: ErrSerialization, Err: err}
	}

	req := opensearchapi.UpdateRequest{Index: index, DocumentID: key, Body: bytes.NewReader(payload)}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return classifyStatusErr(ErrUpdate, res.StatusCode, fmt.Errorf("upsert %q: %s", key, res.String()))
	}
	return nil
}

// Delete removes a document by key. Deleting an already-absent document is
// not treated as an error.
func (c *OpenSearchClient) Delete(ctx context.Context, index, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := opensearchapi.DeleteRequest{Index: index, DocumentID: key}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return classifyStatusErr(ErrDelete, res.StatusCode, fmt.Errorf("delete %q: %s", key, res.String()))
	}
	return nil
}

func classifyTransportErr(err error) error {
	return &Error{Kind: ErrConnection, Err: err}
}

func classifyStatusErr(kind ErrorKind, statusCode int, err error) error {
	return &Error{Kind: kind, StatusCode: statusCode, Err: err}
}
