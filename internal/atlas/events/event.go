package events

// BlockMetadata carries the provenance of a topology event: which block
// produced it and the cursor a caller would resume a restarted stream from.
type BlockMetadata struct {
	BlockNumber    uint64
	BlockTimestamp int64 // seconds
	TxHash         string
	Cursor         string
}

// SpaceTypeKind discriminates the two SpaceType variants carried on
// SpaceCreated. GraphState never branches on it; it is carried for
// completeness with the upstream substream payload.
type SpaceTypeKind uint8

const (
	SpaceTypePersonal SpaceTypeKind = iota
	SpaceTypeDao
)

// SpaceType describes how a space was provisioned.
type SpaceType struct {
	Kind           SpaceTypeKind
	Owner          Address   // set iff Kind == SpaceTypePersonal
	InitialEditors []Address // set iff Kind == SpaceTypeDao
	InitialMembers []Address // set iff Kind == SpaceTypeDao
}

// EdgeKind is the kind of an explicit trust edge between two spaces.
type EdgeKind uint8

const (
	// EdgeVerified and EdgeRelated are explicit, stored edges.
	EdgeVerified EdgeKind = iota
	EdgeRelated
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeVerified:
		return "verified"
	case EdgeRelated:
		return "related"
	default:
		return "unknown"
	}
}

// SpaceCreated is emitted the first time a space is observed on-chain.
type SpaceCreated struct {
	SpaceId   SpaceId
	TopicId   TopicId
	SpaceType SpaceType
}

// TrustExtensionKind discriminates the three ways a space can extend trust.
type TrustExtensionKind uint8

const (
	ExtensionVerified TrustExtensionKind = iota
	ExtensionRelated
	ExtensionSubtopic
)

// TrustExtension is the payload of a TrustExtended event: exactly one of
// Verified, Related (explicit edges) or Subtopic (topic-indirection edge)
// is meaningful, selected by Kind.
type TrustExtension struct {
	Kind           TrustExtensionKind
	TargetSpaceId  SpaceId // set iff Kind is Verified or Related
	TargetTopicId  TopicId // set iff Kind is Subtopic
}

// TrustExtended records that SourceSpaceId extended trust via Extension.
type TrustExtended struct {
	SourceSpaceId SpaceId
	Extension     TrustExtension
}

// PayloadKind discriminates the two SpaceTopologyEvent payload variants.
type PayloadKind uint8

const (
	PayloadSpaceCreated PayloadKind = iota
	PayloadTrustExtended
)

// SpaceTopologyEvent is a single topology event: block provenance plus
// exactly one of SpaceCreated or TrustExtended, selected by PayloadKind.
type SpaceTopologyEvent struct {
	Meta          BlockMetadata
	PayloadKind   PayloadKind
	SpaceCreated  SpaceCreated  // set iff PayloadKind == PayloadSpaceCreated
	TrustExtended TrustExtended // set iff PayloadKind == PayloadTrustExtended
}

// NewSpaceCreatedEvent builds a SpaceTopologyEvent carrying a SpaceCreated payload.
func NewSpaceCreatedEvent(meta BlockMetadata, spaceId SpaceId, topicId TopicId, spaceType SpaceType) SpaceTopologyEvent {
	return SpaceTopologyEvent{
		Meta:        meta,
		PayloadKind: PayloadSpaceCreated,
		SpaceCreated: SpaceCreated{
			SpaceId:   spaceId,
			TopicId:   topicId,
			SpaceType: spaceType,
		},
	}
}

// NewTrustExtendedEvent builds a SpaceTopologyEvent carrying a TrustExtended payload.
func NewTrustExtendedEvent(meta BlockMetadata, source SpaceId, extension TrustExtension) SpaceTopologyEvent {
	return SpaceTopologyEvent{
		Meta:        meta,
		PayloadKind: PayloadTrustExtended,
		TrustExtended: TrustExtended{
			SourceSpaceId: source,
			Extension:     extension,
		},
	}
}

// VerifiedExtension builds the Verified variant of TrustExtension.
func VerifiedExtension(target SpaceId) TrustExtension {
	return TrustExtension{Kind: ExtensionVerified, TargetSpaceId: target}
}

// RelatedExtension builds the Related variant of TrustExtension.
func RelatedExtension(target SpaceId) TrustExtension {
	return TrustExtension{Kind: ExtensionRelated, TargetSpaceId: target}
}

// SubtopicExtension builds the Subtopic variant of TrustExtension.
func SubtopicExtension(targetTopic TopicId) TrustExtension {
	return TrustExtension{Kind: ExtensionSubtopic, TargetTopicId: targetTopic}
}
