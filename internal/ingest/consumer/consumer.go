// Package consumer subscribes to the knowledge.edits message bus topic and
// decodes each message into an Edit for the processor stage.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Op is a discriminated union over the wire Op kinds. Only UpdateEntity
// and DeleteRelation carry meaning for the processor; the rest are decoded
// for completeness and ignored downstream.
type OpKind string

const (
	OpUpdateEntity        OpKind = "UPDATE_ENTITY"
	OpDeleteRelation      OpKind = "DELETE_RELATION"
	OpCreateProperty      OpKind = "CREATE_PROPERTY"
	OpCreateRelation      OpKind = "CREATE_RELATION"
	OpUpdateRelation      OpKind = "UPDATE_RELATION"
	OpUnsetEntityValues   OpKind = "UNSET_ENTITY_VALUES"
	OpUnsetRelationFields OpKind = "UNSET_RELATION_FIELDS"
)

// Value is one (property, value) pair on an UpdateEntity op.
type Value struct {
	Property []byte `json:"property"`
	Value    string `json:"value"`
}

// Op is one operation within an Edit.
type Op struct {
	Kind     OpKind  `json:"kind"`
	EntityID []byte  `json:"entity_id,omitempty"`
	Values   []Value `json:"values,omitempty"`
	ID       []byte  `json:"id,omitempty"`
}

// EditMeta is the blockchain provenance carried on an Edit.
type EditMeta struct {
	BlockNumber uint64 `json:"block_number"`
	Cursor      string `json:"cursor"`
}

// Edit is the decoded wire message for one knowledge.edits record.
type Edit struct {
	SpaceID string   `json:"space_id"`
	Meta    EditMeta `json:"meta"`
	Ops     []Op     `json:"ops"`
}

// Error distinguishes decode failures (contained, message committed and
// skipped) from transport failures (bubble up, terminate the consumer).
type Error struct {
	Transport bool
	Err       error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Reader is the subset of kafka.Reader the consumer depends on, narrowed
// for testability.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads knowledge.edits, decodes each message into an Edit, and
// forwards decoded batches through a bounded channel. Auto-commit is
// disabled on the underlying reader; offsets are committed only once the
// pipeline acknowledges, giving at-least-once delivery.
type Consumer struct {
	reader  Reader
	out     chan<- Edit
	logger  *zap.Logger
	pending []kafka.Message
}

// New wraps reader, forwarding decoded Edits onto out.
func New(reader Reader, out chan<- Edit, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, out: out, logger: logger}
}

// Run fetches and forwards messages until ctx is cancelled or a transport
// error occurs. Decode failures are logged and the offending message is
// committed immediately to avoid a poison-pill loop; they do not stop the
// consumer.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("consumer transport error", zap.Error(err))
			return &Error{Transport: true, Err: fmt.Errorf("consumer: fetch: %w", err)}
		}

		edit, decodeErr := decode(msg.Value)
		if decodeErr != nil {
			c.logger.Warn("skipping undecodable edit", zap.Error(decodeErr), zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset))
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("commit of skipped message failed", zap.Error(err))
			}
			continue
		}

		select {
		case c.out <- edit:
		case <-ctx.Done():
			return ctx.Err()
		}

		// Offset commit is deferred to Ack, called once the loader has
		// accepted this edit's derived upserts/deletes.
		c.pending = append(c.pending, msg)
	}
}

// Ack commits every message fetched since the last Ack. It is called by
// the orchestrator after the loader acknowledges a batch.
func (c *Consumer) Ack(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, c.pending...); err != nil {
		return fmt.Errorf("consumer: commit: %w", err)
	}
	c.pending = c.pending[:0]
	return nil
}

func decode(raw []byte) (Edit, error) {
	var edit Edit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return Edit{}, fmt.Errorf("consumer: decode edit: %w", err)
	}
	return edit, nil
}
