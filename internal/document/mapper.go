package document

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/Aman-CERP/claimsync/internal/claims"
	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// DefaultNameCacheSize is how many normalized claim names a mapper keeps.
// Popular names repeat across many claims.
const DefaultNameCacheSize = 4096

// ClaimMapper is the default Mapper. It is safe for concurrent use; its
// only state is a cache of normalized names. The zero value works without
// the cache.
type ClaimMapper struct {
	names *lru.Cache[string, string]
}

// NewClaimMapper returns the default mapper with a name cache of
// DefaultNameCacheSize entries.
func NewClaimMapper() ClaimMapper {
	return NewClaimMapperWithCache(DefaultNameCacheSize)
}

// NewClaimMapperWithCache returns a mapper caching up to size normalized
// names. size <= 0 disables the cache.
func NewClaimMapperWithCache(size int) ClaimMapper {
	if size <= 0 {
		return ClaimMapper{}
	}
	names, _ := lru.New[string, string](size)
	return ClaimMapper{names: names}
}

func (m ClaimMapper) normalize(name string) string {
	if m.names == nil {
		return NormalizeName(name)
	}
	if n, ok := m.names.Get(name); ok {
		return n
	}
	n := NormalizeName(name)
	m.names.Add(name, n)
	return n
}

// Map implements Mapper.
func (m ClaimMapper) Map(c *claims.Claim, index string) (Document, error) {
	if c == nil {
		return Document{}, cserrors.New(cserrors.ErrCodeMapping, "nil claim", nil)
	}
	if c.ClaimID == "" {
		return Document{}, cserrors.New(cserrors.ErrCodeMapping, "claim has no claim_id", nil).
			WithDetail("claim_name", c.Name)
	}

	f := map[string]any{
		FieldClaimID:           c.ClaimID,
		FieldClaimName:         c.Name,
		FieldNormalizedName:    m.normalize(c.Name),
		FieldTxID:              c.TxHash,
		FieldTxNout:            int64(c.Position),
		FieldAmount:            int64(c.Amount),
		FieldHeight:            c.Height,
		FieldCreationHeight:    c.CreationHeight,
		FieldActivationHeight:  c.ActivationHeight,
		FieldExpirationHeight:  c.ExpirationHeight,
		FieldEffectiveAmount:   int64(c.EffectiveAmount),
		FieldSupportAmount:     int64(c.SupportAmount),
		FieldIsControlling:     c.IsControlling,
		FieldSignatureValid:    c.SignatureValid,
		FieldClaimType:         c.ClaimType,
		FieldCensorType:        int64(c.CensorType),
		FieldTimestamp:         c.Timestamp,
		FieldCreationTimestamp: c.CreationTimestamp,
		FieldPermanentURL:      PermanentURL(c.Name, c.ClaimID),
	}

	setString(f, FieldChannelID, c.ChannelID)
	setString(f, FieldRepostedClaimID, c.RepostedClaimID)
	setString(f, FieldTitle, strings.TrimSpace(c.Title))
	setString(f, FieldDescription, strings.TrimSpace(c.Description))
	setString(f, FieldAuthor, strings.TrimSpace(c.Author))
	setString(f, FieldMediaType, c.MediaType)
	setString(f, FieldFeeCurrency, strings.ToUpper(c.FeeCurrency))
	setString(f, FieldCensoringChannelID, c.CensoringChannelID)

	if tags := CleanTags(c.Tags); len(tags) > 0 {
		f[FieldTags] = tags
	}
	if langs := dedupe(c.Languages, strings.ToLower); len(langs) > 0 {
		f[FieldLanguages] = langs
	}
	if c.FeeAmount > 0 {
		f[FieldFeeAmount] = int64(c.FeeAmount)
	}
	if c.Duration > 0 {
		f[FieldDuration] = int64(c.Duration)
	}

	return Document{ID: c.ClaimID, Index: index, Fields: f}, nil
}

func setString(f map[string]any, key, v string) {
	if v != "" {
		f[key] = v
	}
}

// NormalizeName returns the canonical form of a claim name used for
// lookups: NFD-decomposed and case-folded.
func NormalizeName(name string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFD.String(name))
}

// PermanentURL returns the lbry:// URL that always resolves to the claim.
func PermanentURL(name, claimID string) string {
	return "lbry://" + name + "#" + claimID
}

// CleanTags lower-cases and trims tags, dropping empty and repeated ones.
// The first occurrence keeps its position.
func CleanTags(tags []string) []string {
	return dedupe(tags, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(in []string, canon func(string) string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = canon(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
