package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kafka "github.com/segmentio/kafka-go"

	"github.com/geo-atlas/atlas/internal/ingest/consumer"
	"github.com/geo-atlas/atlas/internal/ingest/loader"
	"github.com/geo-atlas/atlas/internal/ingest/search"
	"github.com/geo-atlas/atlas/pkg/idutil"
)

type fakeSearchClient struct {
	mu   sync.Mutex
	docs map[string]search.EntityDocument
}

func newFakeSearchClient() *fakeSearchClient {
	return &fakeSearchClient{docs: make(map[string]search.EntityDocument)}
}

func (f *fakeSearchClient) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeSearchClient) EnsureIndex(ctx context.Context, index string) error { return nil }

func (f *fakeSearchClient) BulkUpsert(ctx context.Context, index string, docs map[string]search.EntityDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range docs {
		f.docs[k] = v
	}
	return nil
}

func (f *fakeSearchClient) Upsert(ctx context.Context, index, key string, doc search.EntityDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[key] = doc
	return nil
}

func (f *fakeSearchClient) Delete(ctx context.Context, index, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, key)
	return nil
}

func (f *fakeSearchClient) documentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

// fakeReader replays a fixed slice of messages, then blocks on ctx
// cancellation rather than returning io.EOF, mimicking a consumer caught
// up to the end of a live topic.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	pos       int
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.pos < len(f.messages) {
		msg := f.messages[f.pos]
		f.pos++
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func editMessage(t *testing.T, entityID, spaceID uuid.UUID, name string) kafka.Message {
	t.Helper()
	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{{
			Kind:     consumer.OpUpdateEntity,
			EntityID: entityID[:],
			Values: []consumer.Value{
				{Property: idutil.NamePropertyID[:], Value: name},
			},
		}},
	}
	raw, err := json.Marshal(edit)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestOrchestrator_ConsumesEditsAndLoadsDocuments(t *testing.T) {
	entityID, spaceID := uuid.New(), uuid.New()
	reader := &fakeReader{messages: []kafka.Message{editMessage(t, entityID, spaceID, "Acme")}}

	client := newFakeSearchClient()
	cfg := loader.NewConfig("entities")
	cfg.FlushInterval = time.Hour // keep the ticker quiet: the batch stays under BatchSize, so the document lands via the shutdown flush
	l := loader.New(client, cfg, nil, zap.NewNop())

	readerFactory := func(out chan<- consumer.Edit, logger *zap.Logger) *consumer.Consumer {
		return consumer.New(reader, out, logger)
	}
	orch := New(readerFactory, l, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := orch.Run(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))

	require.NoError(t, l.Flush(context.Background()))
	require.Equal(t, 1, client.documentCount())
}
