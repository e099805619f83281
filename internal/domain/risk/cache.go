package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrCacheMiss is returned by a Cache when no usable record exists.
var ErrCacheMiss = errors.New("risk: cache miss")

// Cache stores encoded assessment records. Implementations must treat an
// expired or absent entry as ErrCacheMiss.
type Cache interface {
	Get(ctx context.Context, key CacheKey) ([]byte, error)
	Set(ctx context.Context, key CacheKey, value []byte, ttl time.Duration) error
}

// CacheKeyPrefix namespaces assessment keys. The version segment changes
// whenever the record layout does.
const CacheKeyPrefix = "risk:v1"

// CacheKey identifies one cached assessment. InputsHash covers the
// normalized subject, inputs and the reference-data revision, so a catalog
// change never serves a stale result.
type CacheKey struct {
	SubjectType SubjectType
	SubjectKey  string
	InputsHash  string
}

// NewCacheKey derives the key for (subject, inputs) under revision.
func NewCacheKey(subject Subject, inputs Inputs, revision string) (CacheKey, error) {
	n := subject.Normalize()
	payload, err := json.Marshal(struct {
		Subject  Subject `json:"subject"`
		Inputs   Inputs  `json:"inputs"`
		Revision string  `json:"revision"`
	}{n, normalizeInputs(inputs), revision})
	if err != nil {
		return CacheKey{}, fmt.Errorf("risk: encode cache key: %w", err)
	}
	return CacheKey{
		SubjectType: n.Type,
		SubjectKey:  n.Key(),
		InputsHash:  strconv.FormatUint(xxhash.Sum64(payload), 16),
	}, nil
}

// String renders the key as stored, e.g. risk:v1:protocol:aave:9f1c...
func (k CacheKey) String() string {
	return CacheKeyPrefix + ":" + string(k.SubjectType) + ":" + k.SubjectKey + ":" + k.InputsHash
}

func normalizeInputs(in Inputs) Inputs {
	if len(in.Positions) == 0 {
		return Inputs{}
	}
	out := Inputs{Positions: make([]Position, len(in.Positions))}
	for i, p := range in.Positions {
		out.Positions[i] = Position{Kind: p.Kind, Ref: NormalizeKey(p.Ref), ValueUSD: p.ValueUSD}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Tagged records
// ─────────────────────────────────────────────────────────────────────────────

const (
	cachedRecordKind    = "risk_assessment"
	cachedRecordVersion = 1
)

type cachedRecord struct {
	Kind     string    `json:"kind"`
	Version  int       `json:"version"`
	CachedAt time.Time `json:"cached_at"`
	Result   Result    `json:"result"`
}

// EncodeCachedResult wraps r in a tagged record.
func EncodeCachedResult(r Result, at time.Time) ([]byte, error) {
	data, err := json.Marshal(cachedRecord{
		Kind:     cachedRecordKind,
		Version:  cachedRecordVersion,
		CachedAt: at.UTC(),
		Result:   r,
	})
	if err != nil {
		return nil, fmt.Errorf("risk: encode cached result: %w", err)
	}
	return data, nil
}

// DecodeCachedResult unwraps a tagged record. Records of another kind or
// version, and undecodable bytes, are reported as ErrCacheMiss.
func DecodeCachedResult(data []byte) (Result, time.Time, error) {
	var rec cachedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Result{}, time.Time{}, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	if rec.Kind != cachedRecordKind || rec.Version != cachedRecordVersion {
		return Result{}, time.Time{}, fmt.Errorf("%w: record %s/v%d", ErrCacheMiss, rec.Kind, rec.Version)
	}
	if !rec.Result.SubjectType.IsValid() || !rec.Result.Level.IsValid() {
		return Result{}, time.Time{}, fmt.Errorf("%w: malformed result", ErrCacheMiss)
	}
	return rec.Result, rec.CachedAt, nil
}
