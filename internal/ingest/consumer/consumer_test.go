package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kafka "github.com/segmentio/kafka-go"
)

const (
	contextTimeout = time.Second
	pollInterval   = 10 * time.Millisecond
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	pos       int
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.messages) {
		return kafka.Message{}, errors.New("fakeReader: exhausted")
	}
	msg := f.messages[f.pos]
	f.pos++
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func marshalEdit(t *testing.T, e Edit) []byte {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	return raw
}

func TestConsumer_Run_ForwardsDecodedEdits(t *testing.T) {
	edit := Edit{SpaceID: "11111111-1111-1111-1111-111111111111", Meta: EditMeta{BlockNumber: 1, Cursor: "c1"}}
	reader := &fakeReader{messages: []kafka.Message{{Value: marshalEdit(t, edit), Offset: 1}}}

	out := make(chan Edit, 1)
	c := New(reader, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	received := <-out
	require.Equal(t, edit.SpaceID, received.SpaceID)

	require.NoError(t, c.Ack(context.Background()))
	require.Len(t, reader.committed, 1)
}

func TestConsumer_Run_SkipsUndecodableMessage(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Value: []byte("not json"), Offset: 1},
		{Value: marshalEdit(t, Edit{SpaceID: "11111111-1111-1111-1111-111111111111"}), Offset: 2},
	}}

	out := make(chan Edit, 1)
	c := New(reader, out, nil)

	go func() { _ = c.Run(context.Background()) }()

	received := <-out
	require.Equal(t, "11111111-1111-1111-1111-111111111111", received.SpaceID)

	// the undecodable message should have been committed immediately,
	// independent of the pipeline's own Ack.
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 1
	}, contextTimeout, pollInterval)
}
