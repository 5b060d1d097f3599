package document

// FieldType is the engine-neutral type of a document field.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeStringArray FieldType = "string[]"
	TypeInt         FieldType = "int64"
	TypeBool        FieldType = "bool"
)

// Field describes one document field.
type Field struct {
	Name string
	Type FieldType
	// Text fields are analyzed for full-text search; others match exactly.
	Text bool
	// Facet fields support filtering and aggregation.
	Facet bool
	// Optional fields may be absent from a document.
	Optional bool
}

// Field names produced by ClaimMapper.
const (
	FieldClaimID            = "claim_id"
	FieldClaimName          = "claim_name"
	FieldNormalizedName     = "normalized_name"
	FieldTxID               = "tx_id"
	FieldTxNout             = "tx_nout"
	FieldAmount             = "amount"
	FieldHeight             = "height"
	FieldCreationHeight     = "creation_height"
	FieldActivationHeight   = "activation_height"
	FieldExpirationHeight   = "expiration_height"
	FieldEffectiveAmount    = "effective_amount"
	FieldSupportAmount      = "support_amount"
	FieldChannelID          = "channel_id"
	FieldRepostedClaimID    = "reposted_claim_id"
	FieldIsControlling      = "is_controlling"
	FieldSignatureValid     = "signature_valid"
	FieldClaimType          = "claim_type"
	FieldTitle              = "title"
	FieldDescription        = "description"
	FieldAuthor             = "author"
	FieldTags               = "tags"
	FieldLanguages          = "languages"
	FieldMediaType          = "media_type"
	FieldFeeAmount          = "fee_amount"
	FieldFeeCurrency        = "fee_currency"
	FieldDuration           = "duration"
	FieldCensorType         = "censor_type"
	FieldCensoringChannelID = "censoring_channel_id"
	FieldTimestamp          = "timestamp"
	FieldCreationTimestamp  = "creation_timestamp"
	FieldPermanentURL       = "permanent_url"
)

// DefaultSortField is the field engines sort by when a query names none.
const DefaultSortField = FieldEffectiveAmount

// Schema returns the fields of a claim document.
func Schema() []Field {
	return []Field{
		{Name: FieldClaimID, Type: TypeString},
		{Name: FieldClaimName, Type: TypeString, Text: true},
		{Name: FieldNormalizedName, Type: TypeString, Facet: true},
		{Name: FieldTxID, Type: TypeString},
		{Name: FieldTxNout, Type: TypeInt},
		{Name: FieldAmount, Type: TypeInt},
		{Name: FieldHeight, Type: TypeInt, Facet: true},
		{Name: FieldCreationHeight, Type: TypeInt},
		{Name: FieldActivationHeight, Type: TypeInt},
		{Name: FieldExpirationHeight, Type: TypeInt},
		{Name: FieldEffectiveAmount, Type: TypeInt},
		{Name: FieldSupportAmount, Type: TypeInt},
		{Name: FieldChannelID, Type: TypeString, Facet: true, Optional: true},
		{Name: FieldRepostedClaimID, Type: TypeString, Optional: true},
		{Name: FieldIsControlling, Type: TypeBool, Facet: true},
		{Name: FieldSignatureValid, Type: TypeBool},
		{Name: FieldClaimType, Type: TypeString, Facet: true},
		{Name: FieldTitle, Type: TypeString, Text: true, Optional: true},
		{Name: FieldDescription, Type: TypeString, Text: true, Optional: true},
		{Name: FieldAuthor, Type: TypeString, Text: true, Optional: true},
		{Name: FieldTags, Type: TypeStringArray, Facet: true, Optional: true},
		{Name: FieldLanguages, Type: TypeStringArray, Facet: true, Optional: true},
		{Name: FieldMediaType, Type: TypeString, Facet: true, Optional: true},
		{Name: FieldFeeAmount, Type: TypeInt, Optional: true},
		{Name: FieldFeeCurrency, Type: TypeString, Facet: true, Optional: true},
		{Name: FieldDuration, Type: TypeInt, Optional: true},
		{Name: FieldCensorType, Type: TypeInt, Facet: true},
		{Name: FieldCensoringChannelID, Type: TypeString, Optional: true},
		{Name: FieldTimestamp, Type: TypeInt},
		{Name: FieldCreationTimestamp, Type: TypeInt},
		{Name: FieldPermanentURL, Type: TypeString},
	}
}
