package processor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/geo-atlas/atlas/internal/ingest/consumer"
	"github.com/geo-atlas/atlas/pkg/idutil"
)

func TestEntityProcessor_UpdateEntity_EmitsUpsertWithName(t *testing.T) {
	entityID := uuid.New()
	spaceID := uuid.New()

	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{
			{
				Kind:     consumer.OpUpdateEntity,
				EntityID: entityID[:],
				Values: []consumer.Value{
					{Property: idutil.NamePropertyID[:], Value: "Acme Corp"},
					{Property: idutil.DescriptionPropertyID[:], Value: "A widget maker"},
				},
			},
		},
	}

	upserts, deletes, errs := New().Process(edit)
	require.Empty(t, errs)
	require.Empty(t, deletes)
	require.Len(t, upserts, 1)
	require.Equal(t, entityID, upserts[0].EntityID)
	require.Equal(t, spaceID, upserts[0].SpaceID)
	require.Equal(t, "Acme Corp", upserts[0].Name)
	require.NotNil(t, upserts[0].Description)
	require.Equal(t, "A widget maker", *upserts[0].Description)
}

func TestEntityProcessor_UpdateEntity_SkipsWhenNameEmpty(t *testing.T) {
	entityID := uuid.New()
	spaceID := uuid.New()

	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{
			{
				Kind:     consumer.OpUpdateEntity,
				EntityID: entityID[:],
				Values: []consumer.Value{
					{Property: idutil.DescriptionPropertyID[:], Value: "no name here"},
				},
			},
		},
	}

	upserts, deletes, errs := New().Process(edit)
	require.Empty(t, errs)
	require.Empty(t, deletes)
	require.Empty(t, upserts)
}

func TestEntityProcessor_UpdateEntity_IgnoresUnknownProperties(t *testing.T) {
	entityID := uuid.New()
	spaceID := uuid.New()
	var unknownProp [16]byte
	unknownProp[0] = 0xFF

	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{
			{
				Kind:     consumer.OpUpdateEntity,
				EntityID: entityID[:],
				Values: []consumer.Value{
					{Property: unknownProp[:], Value: "ignored"},
				},
			},
		},
	}

	upserts, _, errs := New().Process(edit)
	require.Empty(t, errs)
	require.Empty(t, upserts)
}

func TestEntityProcessor_DeleteRelation_EmitsDelete(t *testing.T) {
	entityID := uuid.New()
	spaceID := uuid.New()

	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{
			{Kind: consumer.OpDeleteRelation, ID: entityID[:]},
		},
	}

	upserts, deletes, errs := New().Process(edit)
	require.Empty(t, errs)
	require.Empty(t, upserts)
	require.Len(t, deletes, 1)
	require.Equal(t, entityID, deletes[0].EntityID)
	require.Equal(t, spaceID, deletes[0].SpaceID)
}

func TestEntityProcessor_OtherOpKinds_AreIgnored(t *testing.T) {
	spaceID := uuid.New()
	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{
			{Kind: consumer.OpCreateProperty},
			{Kind: consumer.OpCreateRelation},
			{Kind: consumer.OpUpdateRelation},
			{Kind: consumer.OpUnsetEntityValues},
			{Kind: consumer.OpUnsetRelationFields},
		},
	}

	upserts, deletes, errs := New().Process(edit)
	require.Empty(t, errs)
	require.Empty(t, upserts)
	require.Empty(t, deletes)
}

func TestEntityProcessor_InvalidEntityID_IsReportedAndSkipped(t *testing.T) {
	spaceID := uuid.New()
	edit := consumer.Edit{
		SpaceID: spaceID.String(),
		Ops: []consumer.Op{
			{Kind: consumer.OpUpdateEntity, EntityID: []byte{1, 2, 3}, Values: []consumer.Value{
				{Property: idutil.NamePropertyID[:], Value: "x"},
			}},
		},
	}

	upserts, _, errs := New().Process(edit)
	require.Empty(t, upserts)
	require.Len(t, errs, 1)
}
