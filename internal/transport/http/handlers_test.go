package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
	"github.com/scoutzone/scoutzone/internal/rights"
	"github.com/scoutzone/scoutzone/internal/session"
	"github.com/scoutzone/scoutzone/internal/store/memory"
	"github.com/scoutzone/scoutzone/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdentityRepo struct {
	users map[string]*identity.User
	infos map[string]*identity.UserInfo
}

func (s *stubIdentityRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (s *stubIdentityRepo) InfoByEmail(ctx context.Context, email string) (*identity.UserInfo, error) {
	info, ok := s.infos[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return info, nil
}

func (s *stubIdentityRepo) RolesByUserIDs(ctx context.Context, userIDs []int64) (map[int64]identity.RoleType, error) {
	out := make(map[int64]identity.RoleType)
	for _, info := range s.infos {
		for _, id := range userIDs {
			if info.ID == id {
				out[id] = info.Role
			}
		}
	}
	return out, nil
}

func (s *stubIdentityRepo) AcceptAgreement(ctx context.Context, userID, organizationID int64, agreementType identity.AgreementType) error {
	return nil
}

type stubRightsRepo struct {
	nextID int64
	specs  []rights.SpecRight
	grants []rights.Grant
}

func (s *stubRightsRepo) GetOrCreateSpec(ctx context.Context, sourceID int64, sourceType rights.SourceType, rightType rights.RightType) (*rights.SpecRight, error) {
	for i := range s.specs {
		sp := &s.specs[i]
		if sp.SourceID == sourceID && sp.SourceType == sourceType && sp.RightType == rightType {
			return sp, nil
		}
	}
	s.nextID++
	spec := rights.SpecRight{ID: s.nextID, SourceID: sourceID, SourceType: sourceType, RightType: rightType}
	s.specs = append(s.specs, spec)
	return &spec, nil
}

func (s *stubRightsRepo) UpdateSpec(ctx context.Context, specID, sourceID int64, sourceType rights.SourceType, rightType rights.RightType) (*rights.SpecRight, error) {
	for i := range s.specs {
		if s.specs[i].ID == specID {
			s.specs[i].SourceID = sourceID
			s.specs[i].SourceType = sourceType
			s.specs[i].RightType = rightType
			return &s.specs[i], nil
		}
	}
	return nil, rights.ErrRightsNotFound
}

func (s *stubRightsRepo) UpsertGrants(ctx context.Context, subjectIDs []int64, constraints rights.Constraints, spec *rights.SpecRight) error {
	for _, id := range subjectIDs {
		replaced := false
		for i := range s.grants {
			g := &s.grants[i]
			if g.SubjectID == id && g.SourceID == spec.SourceID && g.SourceType == spec.SourceType {
				g.SpecRightID = spec.ID
				g.RightID = spec.ID
				g.RightType = spec.RightType
				g.Constraints = constraints
				replaced = true
			}
		}
		if !replaced {
			s.nextID++
			s.grants = append(s.grants, rights.Grant{
				SpecRightID: spec.ID,
				UserRightID: s.nextID,
				RightID:     spec.ID,
				SubjectID:   id,
				SourceID:    spec.SourceID,
				SourceType:  spec.SourceType,
				RightType:   spec.RightType,
				Constraints: constraints,
			})
		}
	}
	return nil
}

func (s *stubRightsRepo) DeleteGrants(ctx context.Context, subjectIDs []int64, rightID int64) (int64, error) {
	var kept []rights.Grant
	var removed int64
	for _, g := range s.grants {
		drop := false
		if g.RightID == rightID {
			for _, id := range subjectIDs {
				if g.SubjectID == id {
					drop = true
				}
			}
		}
		if drop {
			removed++
		} else {
			kept = append(kept, g)
		}
	}
	s.grants = kept
	return removed, nil
}

func (s *stubRightsRepo) DeleteSubjectGrant(ctx context.Context, subjectID, sourceID int64) (*rights.Grant, error) {
	for i, g := range s.grants {
		if g.SubjectID == subjectID && g.SourceID == sourceID {
			s.grants = append(s.grants[:i], s.grants[i+1:]...)
			return &g, nil
		}
	}
	return nil, rights.ErrRightsNotFound
}

func (s *stubRightsRepo) ListBySubject(ctx context.Context, subjectID, sourceID int64, sourceType rights.SourceType) ([]rights.Grant, error) {
	var out []rights.Grant
	for _, g := range s.grants {
		if g.SubjectID == subjectID && g.SourceID == sourceID && g.SourceType == sourceType {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubRightsRepo) ListBySource(ctx context.Context, sourceID int64, sourceType rights.SourceType, rightType *rights.RightType) ([]rights.Grant, error) {
	var out []rights.Grant
	for _, g := range s.grants {
		if g.SourceID == sourceID && g.SourceType == sourceType {
			if rightType != nil && g.RightType != *rightType {
				continue
			}
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubRightsRepo) ListBySourceType(ctx context.Context, sourceType rights.SourceType) ([]rights.Grant, error) {
	var out []rights.Grant
	for _, g := range s.grants {
		if g.SourceType == sourceType {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubRightsRepo) ListSubjectSources(ctx context.Context, subjectID int64, sourceType rights.SourceType) ([]rights.Grant, error) {
	var out []rights.Grant
	for _, g := range s.grants {
		if g.SubjectID == subjectID && g.SourceType == sourceType {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubRightsRepo) InTx(ctx context.Context, fn func(rights.Repository) error) error {
	return fn(s)
}

type testEnv struct {
	router     http.Handler
	idRepo     *stubIdentityRepo
	rightsRepo *stubRightsRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	idRepo := &stubIdentityRepo{
		users: make(map[string]*identity.User),
		infos: make(map[string]*identity.UserInfo),
	}
	rightsRepo := &stubRightsRepo{}

	auditLogger := audit.NewSlogLogger()
	hasher := identity.NewPasswordHasher(8*1024, 1, 1, 16, 32)
	identityService := identity.NewService(idRepo, hasher, auditLogger)

	m := metrics.Nop()
	tokenService := token.NewService(identityService, memory.New(), token.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, auditLogger, m)

	resolver := session.NewResolver(tokenService, session.Config{
		CookieName: "access_token",
		RefreshTTL: 3600,
	})

	rightsService := rights.NewService(rightsRepo, idRepo)
	orchestrator := rights.NewOrchestrator(rightsService, rightsRepo, auditLogger)

	handler := NewHandler(identityService, tokenService, resolver, rightsService, orchestrator, auditLogger, m)
	return &testEnv{
		router:     NewRouter(handler, NewRateLimiter(1000, 1000)),
		idRepo:     idRepo,
		rightsRepo: rightsRepo,
	}
}

func (e *testEnv) seedUser(t *testing.T, id int64, email, password string, role identity.RoleType) {
	t.Helper()
	hasher := identity.NewPasswordHasher(8*1024, 1, 1, 16, 32)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	orgID := int64(1)
	e.idRepo.users[email] = &identity.User{ID: id, Email: email, PasswordHash: hash, Active: true}
	e.idRepo.infos[email] = &identity.UserInfo{
		ID: id, Email: email, Role: role, OrganizationID: &orgID, Active: true,
	}
}

func (e *testEnv) login(t *testing.T, email, password string) (*http.Cookie, int) {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == "access_token" && c.Value != "" {
			return c, w.Code
		}
	}
	return nil, w.Code
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestLoginAndWhoami(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)

	cookie, code := env.login(t, "director@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/users/whoami", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var user identity.UserInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, identity.RoleHRDirector, user.Role)
}

func TestLoginInvalidPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)

	body, _ := json.Marshal(LoginRequest{Email: "director@example.com", Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "InvalidCredentials", decodeError(t, w).ExcState)
}

func TestWhoamiWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/whoami", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SessionExpired", decodeError(t, w).ExcState)
}

func TestLogoutKillsSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)

	cookie, code := env.login(t, "director@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// the unexpired access token is dead after revocation
	req = httptest.NewRequest(http.MethodGet, "/api/users/whoami", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SessionExpired", decodeError(t, w).ExcState)
}

func TestVerifyWithBearerHeader(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 4, "service@example.com", "s3cret", identity.RoleServiceUser)

	body, _ := json.Marshal(LoginRequest{Email: "service@example.com", Password: "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Tokens.AccessToken)

	req = httptest.NewRequest(http.MethodGet, "/api/users/verify", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Tokens.AccessToken)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var user identity.UserInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
	assert.Equal(t, int64(4), user.ID)

	// the header path never rotates, so no cookie comes back
	assert.Empty(t, w.Result().Cookies())
}

func TestVerifyWithoutHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/verify", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SessionExpired", decodeError(t, w).ExcState)
}

func TestChangeRightsFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)
	env.seedUser(t, 2, "recruiter@example.com", "s3cret", identity.RoleHRRecruiter)

	cookie, code := env.login(t, "director@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)

	body, _ := json.Marshal(ChangeRightsRequest{
		SourceType: rights.SourceVacancy,
		RightType:  rights.RightManage,
		UserIDsIn:  []int64{2},
	})
	req := httptest.NewRequest(http.MethodPut, "/api/rights/by-rel/10", bytes.NewReader(body))
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]bool
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.True(t, out["changed"])

	// the grant shows up grouped by right type
	req = httptest.NewRequest(http.MethodGet, "/api/rights/by-rel/10?source_type=VACANCY", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var grouped map[rights.RightType][]rights.Grant
	require.NoError(t, json.NewDecoder(w.Body).Decode(&grouped))
	require.Len(t, grouped[rights.RightManage], 1)
	assert.Equal(t, int64(2), grouped[rights.RightManage][0].SubjectID)

	// and the subject's effective right resolves
	req = httptest.NewRequest(http.MethodGet, "/api/rights/by-rel/10/2?source_type=VACANCY", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var grant rights.Grant
	require.NoError(t, json.NewDecoder(w.Body).Decode(&grant))
	assert.Equal(t, rights.RightManage, grant.RightType)
}

func TestChangeRightsConstraintViolation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)
	env.seedUser(t, 2, "recruiter@example.com", "s3cret", identity.RoleHRRecruiter)

	cookie, code := env.login(t, "director@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)

	body, _ := json.Marshal(ChangeRightsRequest{
		SourceType:  rights.SourceVacancy,
		RightType:   rights.RightManage,
		Constraints: rights.Constraints{HiddenFields: []rights.HiddenField{rights.HiddenSalaryFrom}},
		UserIDsIn:   []int64{2},
	})
	req := httptest.NewRequest(http.MethodPut, "/api/rights/by-rel/10", bytes.NewReader(body))
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ConstraintValidationError", decodeError(t, w).ExcState)
}

func TestChangeRightsForbiddenForEmployee(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 3, "employee@example.com", "s3cret", identity.RoleHREmployee)

	cookie, code := env.login(t, "employee@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)

	body, _ := json.Marshal(ChangeRightsRequest{
		SourceType: rights.SourceVacancy,
		RightType:  rights.RightViewPublic,
		UserIDsIn:  []int64{3},
	})
	req := httptest.NewRequest(http.MethodPut, "/api/rights/by-rel/10", bytes.NewReader(body))
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "InsufficientRights", decodeError(t, w).ExcState)
}

func TestRevokeSubjectRight(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)
	env.rightsRepo.grants = []rights.Grant{
		{SubjectID: 2, SourceID: 10, SourceType: rights.SourceVacancy, RightType: rights.RightViewAll},
	}

	cookie, code := env.login(t, "director@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodDelete, "/api/rights/by-rel/10/2", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.rightsRepo.grants)

	// revoking again reports the absence
	req = httptest.NewRequest(http.MethodDelete, "/api/rights/by-rel/10/2", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RightsNotFound", decodeError(t, w).ExcState)
}

func TestListSubjectSources(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, "director@example.com", "s3cret", identity.RoleHRDirector)
	env.rightsRepo.grants = []rights.Grant{
		{SubjectID: 2, SourceID: 20, SourceType: rights.SourceVacancy, RightType: rights.RightViewAll},
		{SubjectID: 2, SourceID: 10, SourceType: rights.SourceVacancy, RightType: rights.RightManage},
	}

	cookie, code := env.login(t, "director@example.com", "s3cret")
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/api/rights/by-user/2?source_type=VACANCY", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out rights.GrantedSources
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, []int64{10, 20}, out.AssignedSourceIDs)
	assert.Equal(t, []int64{20}, out.Grouped[rights.RightViewAll])
	assert.Equal(t, []int64{10}, out.Grouped[rights.RightManage])
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, "healthy", out["status"])
}
