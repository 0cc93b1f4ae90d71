// Package processor turns decoded Ops into Upsert/Delete documents the
// loader can apply to the search backend. It runs inline on the loader
// side and performs no I/O.
package processor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/geo-atlas/atlas/internal/ingest/consumer"
	"github.com/geo-atlas/atlas/pkg/idutil"
)

// Upsert is a create-or-update document derived from an UpdateEntity op
// that carried a non-empty name.
type Upsert struct {
	EntityID    uuid.UUID
	SpaceID     uuid.UUID
	Name        string
	Description *string
}

// Delete is a document removal derived from a DeleteRelation op.
type Delete struct {
	EntityID uuid.UUID
	SpaceID  uuid.UUID
}

// Error reports a malformed payload: invalid ID bytes within an op, or an
// invalid space_id on the Edit. Values whose property is not one of the
// well-known IDs are ignored, not reported. An op-level Error skips only
// the offending op and the rest of the batch continues.
type Error struct {
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// EntityProcessor transforms one Edit's Ops into Upserts and Deletes.
type EntityProcessor struct{}

// New returns a stateless EntityProcessor.
func New() *EntityProcessor { return &EntityProcessor{} }

// Process walks every Op in edit and returns the Upserts and Deletes it
// produces. Malformed ops are skipped and reported; op kinds with no search
// projection are skipped without a report. An invalid space_id is reported
// as the only error and no op of the Edit is processed.
func (p *EntityProcessor) Process(edit consumer.Edit) ([]Upsert, []Delete, []error) {
	spaceID, err := uuid.Parse(edit.SpaceID)
	if err != nil {
		return nil, nil, []error{&Error{Err: fmt.Errorf("processor: invalid space_id %q: %w", edit.SpaceID, err)}}
	}

	var upserts []Upsert
	var deletes []Delete
	var errs []error

	for _, op := range edit.Ops {
		switch op.Kind {
		case consumer.OpUpdateEntity:
			upsert, ok, err := p.processUpdateEntity(op, spaceID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				upserts = append(upserts, upsert)
			}
		case consumer.OpDeleteRelation:
			del, err := p.processDeleteRelation(op, spaceID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			deletes = append(deletes, del)
		default:
			// CreateProperty, CreateRelation, UpdateRelation,
			// UnsetEntityValues, UnsetRelationFields: no search-index
			// projection, ignored.
		}
	}

	return upserts, deletes, errs
}

func (p *EntityProcessor) processUpdateEntity(op consumer.Op, spaceID uuid.UUID) (Upsert, bool, error) {
	entityID, err := idutil.UUIDFromBytes(op.EntityID)
	if err != nil {
		return Upsert{}, false, &Error{Err: fmt.Errorf("processor: update_entity: %w", err)}
	}

	var name string
	var description *string
	for _, v := range op.Values {
		var propID [16]byte
		copy(propID[:], v.Property)

		switch propID {
		case idutil.NamePropertyID:
			name = v.Value
		case idutil.DescriptionPropertyID:
			d := v.Value
			description = &d
		}
	}

	if name == "" {
		return Upsert{}, false, nil
	}

	return Upsert{EntityID: entityID, SpaceID: spaceID, Name: name, Description: description}, true, nil
}

func (p *EntityProcessor) processDeleteRelation(op consumer.Op, spaceID uuid.UUID) (Delete, error) {
	entityID, err := idutil.UUIDFromBytes(op.ID)
	if err != nil {
		return Delete{}, &Error{Err: fmt.Errorf("processor: delete_relation: %w", err)}
	}
	return Delete{EntityID: entityID, SpaceID: spaceID}, nil
}
