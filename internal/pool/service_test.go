// Copyright 2026 The Agentdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pool

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/agentdesk/internal/audit"
)

// fakePoolRepo mimics the storage layer's atomic claim semantics with a
// mutex: each claim observes and mutates state under one lock, the way a
// single database transaction would.
type fakePoolRepo struct {
	mu        sync.Mutex
	resources map[string]*Resource
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{resources: make(map[string]*Resource)}
}

func (f *fakePoolRepo) Create(ctx context.Context, r *Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.resources {
		if existing.Username == r.Username {
			return ErrAlreadyInPool
		}
	}
	copied := *r
	f.resources[r.ID] = &copied
	return nil
}

func (f *fakePoolRepo) Claim(ctx context.Context, tenantID string, at time.Time) (*Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var available []*Resource
	for _, r := range f.resources {
		if r.Status == StatusAvailable {
			available = append(available, r)
		}
	}
	if len(available) == 0 {
		return nil, ErrExhausted
	}
	sort.Slice(available, func(i, j int) bool {
		if available[i].CreatedAt.Equal(available[j].CreatedAt) {
			return available[i].ID < available[j].ID
		}
		return available[i].CreatedAt.Before(available[j].CreatedAt)
	})

	oldest := available[0]
	oldest.Status = StatusAssigned
	oldest.AssignedTo = tenantID
	oldest.AssignedAt = &at

	copied := *oldest
	return &copied, nil
}

func (f *fakePoolRepo) Release(ctx context.Context, tenantID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.resources {
		if r.Status == StatusAssigned && r.AssignedTo == tenantID {
			r.Status = StatusAvailable
			r.AssignedTo = ""
			r.AssignedAt = nil
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePoolRepo) Retire(ctx context.Context, resourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[resourceID]
	if !ok || r.Status == StatusRetired {
		return false, nil
	}
	r.Status = StatusRetired
	r.AssignedTo = ""
	r.AssignedAt = nil
	return true, nil
}

func (f *fakePoolRepo) GetByTenant(ctx context.Context, tenantID string) (*Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.resources {
		if r.Status == StatusAssigned && r.AssignedTo == tenantID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakePoolRepo) Counts(ctx context.Context) (available, assigned, retired int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.resources {
		switch r.Status {
		case StatusAvailable:
			available++
		case StatusAssigned:
			assigned++
		case StatusRetired:
			retired++
		}
	}
	return available, assigned, retired, nil
}

// fakeValidator accepts every token and derives an identity from it
type fakeValidator struct {
	reject map[string]bool
}

func (v *fakeValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if v.reject[token] {
		return nil, fmt.Errorf("provider rejected token")
	}
	return &Identity{Username: "bot_" + token, DisplayName: "Bot " + token}, nil
}

type nopAudit struct{}

func (nopAudit) Log(ctx context.Context, event audit.Event) {}

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return cipher
}

func newTestPool(t *testing.T) (*Service, *fakePoolRepo) {
	t.Helper()
	repo := newFakePoolRepo()
	service := NewService(repo, &fakeValidator{}, testCipher(t), nopAudit{}, 10)
	return service, repo
}

// TestPurpose: Validates that claiming from an empty pool surfaces the exhaustion condition.
// Scope: Unit Test
// Expected: Claim returns ErrExhausted and no resource record is mutated.
// Test Case ID: POOL-01
func TestPool_Claim_EmptyPoolExhausted(t *testing.T) {
	service, repo := newTestPool(t)

	_, err := service.Claim(context.Background(), "tenant-1")

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, repo.resources)
}

// TestPurpose: Validates the exclusivity property of concurrent claims.
// Scope: Concurrency Test
// Security: A bot identity must never serve two tenants at once.
// Expected: With M available resources and N > M concurrent claims, exactly M succeed, N-M fail
// with ErrExhausted, and no resource is assigned twice.
// Test Case ID: POOL-02
func TestPool_Claim_ConcurrentExclusivity(t *testing.T) {
	service, _ := newTestPool(t)
	ctx := context.Background()

	const m = 5
	const n = 20
	for i := 0; i < m; i++ {
		_, err := service.Add(ctx, fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make([]*Resource, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Claim(ctx, fmt.Sprintf("tenant-%d", i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	exhausted := 0
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		switch {
		case errs[i] == nil:
			succeeded++
			assert.False(t, seen[results[i].ID], "resource %s assigned twice", results[i].ID)
			seen[results[i].ID] = true
		default:
			assert.ErrorIs(t, errs[i], ErrExhausted)
			exhausted++
		}
	}

	assert.Equal(t, m, succeeded)
	assert.Equal(t, n-m, exhausted)
}

// TestPurpose: Validates that a claimed resource hands back a usable clear token.
// Scope: Unit Test
// Security: Tokens are sealed at rest and must round-trip through the cipher.
// Expected: The claimed resource carries the original provider token, not the sealed form.
// Test Case ID: POOL-03
func TestPool_Claim_UnsealsToken(t *testing.T) {
	service, _ := newTestPool(t)
	ctx := context.Background()

	_, err := service.Add(ctx, "secret-token")
	require.NoError(t, err)

	claimed, err := service.Claim(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", claimed.Token)
	assert.Equal(t, StatusAssigned, claimed.Status)
	assert.Equal(t, "tenant-1", claimed.AssignedTo)
}

func TestPool_Claim_OldestFirst(t *testing.T) {
	repo := newFakePoolRepo()
	service := NewService(repo, &fakeValidator{}, testCipher(t), nopAudit{}, 10)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		sealed, err := service.cipher.Seal(fmt.Sprintf("t%d", i))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, &Resource{
			ID:        fmt.Sprintf("id-%d", i),
			Token:     sealed,
			Username:  fmt.Sprintf("bot%d", i),
			Status:    StatusAvailable,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	claimed, err := service.Claim(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "id-0", claimed.ID)
}

func TestPool_Add_InvalidTokenRejected(t *testing.T) {
	repo := newFakePoolRepo()
	validator := &fakeValidator{reject: map[string]bool{"bad": true}}
	service := NewService(repo, validator, testCipher(t), nopAudit{}, 10)

	_, err := service.Add(context.Background(), "bad")

	assert.ErrorIs(t, err, ErrInvalidResource)
	assert.Empty(t, repo.resources)
}

func TestPool_BulkAdd_CountsInvalid(t *testing.T) {
	repo := newFakePoolRepo()
	validator := &fakeValidator{reject: map[string]bool{"bad-1": true, "bad-2": true}}
	service := NewService(repo, validator, testCipher(t), nopAudit{}, 10)

	added, invalid, err := service.BulkAdd(context.Background(), []string{"ok-1", "bad-1", "ok-2", "bad-2", "ok-1"})

	assert.NoError(t, err)
	assert.Equal(t, 2, added)
	// Two rejected by the provider plus one duplicate username
	assert.Equal(t, 3, invalid)
}

func TestPool_Release_Idempotent(t *testing.T) {
	service, _ := newTestPool(t)
	ctx := context.Background()

	_, err := service.Add(ctx, "token-1")
	require.NoError(t, err)
	_, err = service.Claim(ctx, "tenant-1")
	require.NoError(t, err)

	released, err := service.Release(ctx, "tenant-1")
	assert.NoError(t, err)
	assert.True(t, released)

	// Second release is a no-op, not an error
	released, err = service.Release(ctx, "tenant-1")
	assert.NoError(t, err)
	assert.False(t, released)
}

func TestPool_Retire_Terminal(t *testing.T) {
	service, repo := newTestPool(t)
	ctx := context.Background()

	resource, err := service.Add(ctx, "token-1")
	require.NoError(t, err)

	retired, err := service.Retire(ctx, resource.ID)
	assert.NoError(t, err)
	assert.True(t, retired)

	// Retired resources never return to the pool
	_, err = service.Claim(ctx, "tenant-1")
	assert.ErrorIs(t, err, ErrExhausted)

	retired, err = service.Retire(ctx, resource.ID)
	assert.NoError(t, err)
	assert.False(t, retired)

	assert.Equal(t, StatusRetired, repo.resources[resource.ID].Status)
}

func TestPool_Status_LowAlert(t *testing.T) {
	service, _ := newTestPool(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := service.Add(ctx, fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
	}

	status, err := service.PoolStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Available)
	assert.True(t, status.LowAlert)
	assert.Contains(t, service.HealthNotice(status), "only 3 identities available")

	status.LowAlert = false
	assert.Empty(t, service.HealthNotice(status))
}
