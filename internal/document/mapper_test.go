package document

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/claims"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

func goldenClaim() *claims.Claim {
	return &claims.Claim{
		ClaimID:           "9b2b5c3e4f1a0d6c7e8f9a0b1c2d3e4f5a6b7c8d",
		Name:              "Café-Tunes",
		TxHash:            "e3f1a9c07d2b4e5f6a7b8c9d0e1f2a3b4c5d6e7f8091a2b3c4d5e6f708192a3b",
		Position:          1,
		Amount:            100000000,
		Height:            1049000,
		CreationHeight:    1048000,
		ActivationHeight:  1048010,
		ExpirationHeight:  3150000,
		EffectiveAmount:   250000000,
		SupportAmount:     150000000,
		ChannelID:         "5c8f0e7d6b4a39281706f5e4d3c2b1a098877665",
		IsControlling:     true,
		SignatureValid:    true,
		ClaimType:         "stream",
		Title:             " Morning Set ",
		Description:       "Live recording",
		Author:            "DJ Nemo",
		Tags:              []string{"Music", " music ", "Live", ""},
		Languages:         []string{"en", "EN", "fr"},
		MediaType:         "audio/mpeg",
		Duration:          3600,
		Timestamp:         1700000000,
		CreationTimestamp: 1699990000,
	}
}

func TestClaimMapper_Golden(t *testing.T) {
	// Given: a fully populated claim
	doc, err := NewClaimMapper().Map(goldenClaim(), "claims")
	require.NoError(t, err)

	// When: rendering the document as JSON
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	// Then: it matches the reviewed fixture
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "claim_document", append(data, '\n'))
}

func TestClaimMapper_IdentityAndIndex(t *testing.T) {
	doc, err := NewClaimMapper().Map(goldenClaim(), "claims_v2")

	require.NoError(t, err)
	assert.Equal(t, goldenClaim().ClaimID, doc.ID)
	assert.Equal(t, "claims_v2", doc.Index)
}

func TestClaimMapper_IsPure(t *testing.T) {
	m := NewClaimMapper()
	c := goldenClaim()

	a, err := m.Map(c, "claims")
	require.NoError(t, err)
	b, err := m.Map(c, "claims")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, " Morning Set ", c.Title, "claim must not be modified")
}

func TestClaimMapper_NameCacheMatchesUncached(t *testing.T) {
	// Given a cached mapper and one without a cache
	cached := NewClaimMapperWithCache(2)
	plain := ClaimMapper{}

	// When more distinct names than the cache holds are mapped twice
	for range 2 {
		for _, name := range []string{"Café", "STRASSE", "ünïcode", "plain"} {
			c := &claims.Claim{ClaimID: "abc", Name: name}
			a, err := cached.Map(c, "claims")
			require.NoError(t, err)
			b, err := plain.Map(c, "claims")
			require.NoError(t, err)

			// Then both agree on every field
			assert.Equal(t, b, a)
		}
	}
}

func TestClaimMapper_OmitsEmptyOptionalFields(t *testing.T) {
	doc, err := NewClaimMapper().Map(&claims.Claim{ClaimID: "abc", Name: "x", ClaimType: "channel"}, "claims")
	require.NoError(t, err)

	for _, f := range Schema() {
		_, present := doc.Fields[f.Name]
		if f.Optional {
			assert.False(t, present, "optional field %s should be absent", f.Name)
		} else {
			assert.True(t, present, "required field %s missing", f.Name)
		}
	}
}

func TestClaimMapper_RejectsMissingID(t *testing.T) {
	tests := []struct {
		name  string
		claim *claims.Claim
	}{
		{"nil claim", nil},
		{"empty id", &claims.Claim{Name: "orphan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClaimMapper().Map(tt.claim, "claims")

			require.Error(t, err)
			assert.True(t, cserrors.HasCode(err, cserrors.ErrCodeMapping))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "hello", NormalizeName("HeLLo"))
	// é decomposes into e + combining acute
	assert.Equal(t, "cafe\u0301", NormalizeName("CAFÉ"))
	assert.Equal(t, "strasse", NormalizeName("Straße"))
}

func TestCleanTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, CleanTags([]string{" A", "b", "a ", "", "B"}))
	assert.Nil(t, CleanTags(nil))
}

func TestMapperFunc(t *testing.T) {
	var m Mapper = MapperFunc(func(c *claims.Claim, index string) (Document, error) {
		return Document{ID: c.ClaimID, Index: index}, nil
	})

	doc, err := m.Map(&claims.Claim{ClaimID: "x"}, "i")

	require.NoError(t, err)
	assert.Equal(t, Document{ID: "x", Index: "i"}, doc)
}
