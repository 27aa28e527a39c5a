package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bookwell/bookwell/internal/service"

	"github.com/redis/go-redis/v9"
)

const (
	credentialKeyPrefix = "calcred:"
	// credentialExpiryIndex is a sorted set of credential members scored by
	// access token expiry (unix seconds). It backs the proactive refresh
	// sweep's "what expires soon" query.
	credentialExpiryIndex = "calcred:expiry"
)

// credentialKey generates the Redis key for one credential record.
// Format: calcred:{provider}:{integrationID}
func credentialKey(ref service.IntegrationRef) string {
	return fmt.Sprintf("%s%s:%d", credentialKeyPrefix, ref.Provider, ref.ID)
}

func credentialMember(ref service.IntegrationRef) string {
	return fmt.Sprintf("%s:%d", ref.Provider, ref.ID)
}

func parseCredentialMember(member string) (service.IntegrationRef, bool) {
	idx := strings.LastIndex(member, ":")
	if idx <= 0 {
		return service.IntegrationRef{}, false
	}
	id, err := strconv.ParseInt(member[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return service.IntegrationRef{}, false
	}
	return service.IntegrationRef{
		Provider: service.ProviderKind(member[:idx]),
		ID:       id,
	}, true
}

type credentialRecord struct {
	Provider     string     `json:"provider"`
	ID           int64      `json:"id"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type redisCredentialStore struct {
	rdb *redis.Client
}

// NewCredentialStore returns a Redis-backed credential store. Records are
// stored as JSON alongside a sorted-set expiry index kept in the same
// transaction, so ListExpiring never observes a credential without its
// index entry.
func NewCredentialStore(rdb *redis.Client) service.CredentialStore {
	return &redisCredentialStore{rdb: rdb}
}

func (s *redisCredentialStore) GetCredential(ctx context.Context, ref service.IntegrationRef) (*service.CalendarCredential, error) {
	val, err := s.rdb.Get(ctx, credentialKey(ref)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}

	var record credentialRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("decode credential %s: %w", credentialKey(ref), err)
	}
	return &service.CalendarCredential{
		Provider:      service.ProviderKind(record.Provider),
		IntegrationID: record.ID,
		AccessToken:   record.AccessToken,
		RefreshToken:  record.RefreshToken,
		Scope:         record.Scope,
		ExpiresAt:     record.ExpiresAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

func (s *redisCredentialStore) PutCredential(ctx context.Context, cred *service.CalendarCredential) error {
	if cred == nil {
		return service.ErrCredentialRequired
	}
	ref := cred.Ref()
	if !ref.Identified() {
		return fmt.Errorf("credential %s/%d is not identified", cred.Provider, cred.IntegrationID)
	}

	record := credentialRecord{
		Provider:     string(cred.Provider),
		ID:           cred.IntegrationID,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Scope:        cred.Scope,
		ExpiresAt:    cred.ExpiresAt,
		UpdatedAt:    cred.UpdatedAt,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode credential %s: %w", credentialKey(ref), err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, credentialKey(ref), payload, 0)
	if cred.ExpiresAt != nil {
		pipe.ZAdd(ctx, credentialExpiryIndex, redis.Z{
			Score:  float64(cred.ExpiresAt.Unix()),
			Member: credentialMember(ref),
		})
	} else {
		// Non-expiring tokens never need a proactive refresh.
		pipe.ZRem(ctx, credentialExpiryIndex, credentialMember(ref))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisCredentialStore) ListExpiring(ctx context.Context, within time.Duration, limit int) ([]service.IntegrationRef, error) {
	maxScore := time.Now().Add(within).Unix()
	opts := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(maxScore, 10),
	}
	if limit > 0 {
		opts.Count = int64(limit)
	}

	members, err := s.rdb.ZRangeByScore(ctx, credentialExpiryIndex, opts).Result()
	if err != nil {
		return nil, err
	}

	refs := make([]service.IntegrationRef, 0, len(members))
	for _, member := range members {
		if ref, ok := parseCredentialMember(member); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}
