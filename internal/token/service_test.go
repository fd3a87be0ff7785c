package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{entries: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, accessToken, refreshToken string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[accessToken] = refreshToken
	return nil
}

func (m *mockStore) Get(ctx context.Context, accessToken string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[accessToken]
	if !ok {
		return "", ErrNoSession
	}
	return v, nil
}

func (m *mockStore) GetDel(ctx context.Context, accessToken string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[accessToken]
	if !ok {
		return "", ErrNoSession
	}
	delete(m.entries, accessToken)
	return v, nil
}

func (m *mockStore) Del(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[accessToken]; !ok {
		return ErrNoSession
	}
	delete(m.entries, accessToken)
	return nil
}

type mockResolver struct {
	users map[string]*identity.UserInfo
}

func (m *mockResolver) InfoByEmail(ctx context.Context, email string) (*identity.UserInfo, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return user, nil
}

type nopAudit struct{}

func (nopAudit) Log(ctx context.Context, event audit.Event) {}

var testConfig = Config{
	AccessSecret:  []byte("access-secret-for-tests"),
	RefreshSecret: []byte("refresh-secret-for-tests"),
	AccessTTL:     time.Minute,
	RefreshTTL:    time.Hour,
}

func testUser() *identity.UserInfo {
	return &identity.UserInfo{
		ID:     7,
		Email:  "recruiter@example.com",
		Role:   identity.RoleHRRecruiter,
		Active: true,
	}
}

func newTestService(store SideStore, user *identity.UserInfo) *Service {
	return NewService(
		&mockResolver{users: map[string]*identity.UserInfo{user.Email: user}},
		store, testConfig, nopAudit{}, metrics.Nop(),
	)
}

// expiredAccessToken signs an access token that expired a minute ago.
func expiredAccessToken(t *testing.T, user *identity.UserInfo) string {
	t.Helper()
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email:  user.Email,
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	})
	signed, err := tok.SignedString(testConfig.AccessSecret)
	require.NoError(t, err)
	return signed
}

func validRefreshToken(t *testing.T, email string) string {
	t.Helper()
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString(testConfig.RefreshSecret)
	require.NoError(t, err)
	return signed
}

func TestIssueAndVerify(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user, "device-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// side-store maps access to refresh
	stored, err := store.Get(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, stored)

	got, err := svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Role, got.Role)
}

func TestVerifyForgedToken(t *testing.T) {
	svc := newTestService(newMockStore(), testUser())

	_, err := svc.Verify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// well-formed but signed with the wrong secret
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email: "recruiter@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("attacker-secret"))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRoleDrift(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user, "")
	require.NoError(t, err)

	// role changed server-side after issuance
	user.Role = identity.RoleHREmployee

	_, err = svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestVerifyExpiredIsTerminal(t *testing.T) {
	user := testUser()
	svc := newTestService(newMockStore(), user)

	_, err := svc.Verify(context.Background(), expiredAccessToken(t, user))
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestVerifyOrRefreshRotatesExpired(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	expired := expiredAccessToken(t, user)
	require.NoError(t, store.Set(ctx, expired, validRefreshToken(t, user.Email), time.Hour))

	got, pair, err := svc.VerifyOrRefresh(ctx, expired, "device-1")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEqual(t, expired, pair.AccessToken)

	// the old entry was consumed, the new pair is live
	_, err = store.Get(ctx, expired)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = store.Get(ctx, pair.AccessToken)
	assert.NoError(t, err)

	// replaying the old access token is terminal
	_, _, err = svc.VerifyOrRefresh(ctx, expired, "device-1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestVerifyOrRefreshValidTokenNoRotation(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user, "")
	require.NoError(t, err)

	got, pair, err := svc.VerifyOrRefresh(ctx, issued.AccessToken, "")
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, user.ID, got.ID)
}

func TestVerifyOrRefreshBadRefreshToken(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	expired := expiredAccessToken(t, user)
	require.NoError(t, store.Set(ctx, expired, "garbage-refresh", time.Hour))

	_, _, err := svc.VerifyOrRefresh(ctx, expired, "")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	expired := expiredAccessToken(t, user)
	require.NoError(t, store.Set(ctx, expired, validRefreshToken(t, user.Email), time.Hour))

	const goroutines = 16
	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, pair, err := svc.VerifyOrRefresh(ctx, expired, "device-1")
			if err == nil && pair == nil {
				err = ErrInvalidToken // should be impossible on this path
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var winners, losers int
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSessionExpired)
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, goroutines-1, losers)
}

func TestRevokeIdempotent(t *testing.T) {
	store := newMockStore()
	user := testUser()
	svc := newTestService(store, user)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user, "")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))
	require.NoError(t, svc.Revoke(ctx, pair.AccessToken))

	_, err = store.Get(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrNoSession)

	// a revoked token is dead even though it has not expired yet
	_, err = svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrSessionExpired)
}
