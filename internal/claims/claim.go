// Package claims reads claims from the primary store.
//
// A Store yields every claim exactly once, in store key order, as a lazy
// sequence. Stores are opened through an Opener so that callers can decide
// who owns (and therefore closes) them.
package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
)

// Claim is one claim as held by the primary store. Claims are never mutated
// after they are read.
type Claim struct {
	ClaimID  string `json:"claim_id"`
	Name     string `json:"name"`
	TxHash   string `json:"tx_hash"`
	Position uint32 `json:"position"`
	Amount   uint64 `json:"amount"`

	Height           int64 `json:"height"`
	CreationHeight   int64 `json:"creation_height"`
	ActivationHeight int64 `json:"activation_height"`
	ExpirationHeight int64 `json:"expiration_height"`

	EffectiveAmount uint64 `json:"effective_amount"`
	SupportAmount   uint64 `json:"support_amount"`

	ChannelID       string `json:"channel_id,omitempty"`
	RepostedClaimID string `json:"reposted_claim_id,omitempty"`
	IsControlling   bool   `json:"is_controlling"`
	SignatureValid  bool   `json:"signature_valid"`

	ClaimType   string   `json:"claim_type"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	MediaType   string   `json:"media_type,omitempty"`
	FeeAmount   uint64   `json:"fee_amount,omitempty"`
	FeeCurrency string   `json:"fee_currency,omitempty"`
	Duration    uint32   `json:"duration,omitempty"`

	CensorType         int    `json:"censor_type"`
	CensoringChannelID string `json:"censoring_channel_id,omitempty"`

	Timestamp         int64 `json:"timestamp"`
	CreationTimestamp int64 `json:"creation_timestamp"`
}

// Store is an open connection to the primary claim store.
type Store interface {
	// Claims returns every claim once, in store key order. The sequence
	// yields at most one error, after which it ends. Breaking out of the
	// loop early releases any read resources.
	Claims(ctx context.Context) iter.Seq2[*Claim, error]

	// Close releases the store. It is safe to call more than once.
	Close() error
}

// Opener opens a Store.
type Opener interface {
	Open(ctx context.Context) (Store, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Store, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Store, error) {
	return f(ctx)
}

// Options apply to every backend.
type Options struct {
	// MaxHeight skips claims above this block height when positive.
	MaxHeight int64
}

func (o Options) include(c *Claim) bool {
	return o.MaxHeight <= 0 || c.Height <= o.MaxHeight
}

// Encode returns the stored representation of c.
func Encode(c *Claim) ([]byte, error) {
	return json.Marshal(c)
}

// Decode parses a stored claim. key identifies the record in errors.
func Decode(key string, data []byte) (*Claim, error) {
	var c Claim
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode claim %s: %w", key, err)
	}
	return &c, nil
}
