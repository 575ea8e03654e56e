package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cms-api/internal/audit"
	"cms-api/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type refreshFixture struct {
	tokens    *Manager
	repo      *users.MemoryRepo
	events    *audit.MemoryRepo
	refresher *Refresher
	guard     *Guard
	user      users.User
}

func newRefreshFixture(t *testing.T, store func(users.Store) users.Store) *refreshFixture {
	t.Helper()
	m := newTestManager(t)
	repo := users.NewMemoryRepo(editorRole, users.Role{ID: "00000000-0000-4000-8000-000000000001", Name: "admin"})
	u := seedUser(t, repo, "ada@example.com", "correct-horse")

	var s users.Store = repo
	if store != nil {
		s = store(repo)
	}
	events := audit.NewMemoryRepo()
	f := &refreshFixture{
		tokens: m,
		repo:   repo,
		events: events,
		refresher: NewRefresher(RefresherConfig{
			Tokens:  m,
			Users:   s,
			Cookies: NewCookieManager(m, false),
			Audit:   audit.NewService(events),
		}),
		guard: NewGuard(m),
		user:  u,
	}
	f.at(testNow)
	return f
}

// at pins both clocks.
func (f *refreshFixture) at(now time.Time) {
	f.refresher.clock = func() time.Time { return now }
	f.guard.clock = func() time.Time { return now }
}

func (f *refreshFixture) pair(t *testing.T, now time.Time) TokenPair {
	t.Helper()
	pair, err := f.tokens.IssuePair(now, PrincipalFromUser(f.user))
	require.NoError(t, err)
	return pair
}

/* ===================== EXPLICIT PATH ===================== */

func TestRefresh_IssuesPairWithCurrentRole(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)

	require.NoError(t, f.repo.SetRole(f.user.ID, "00000000-0000-4000-8000-000000000001"))
	f.at(testNow.Add(time.Hour))

	r, err := f.refresher.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "admin", r.User.Role)

	claims, err := f.tokens.Verify(r.Pair.AccessToken, TokenTypeAccess, testNow.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)
	require.NotEqual(t, pair.RefreshToken, r.Pair.RefreshToken)
}

func TestRefresh_Failures(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)
	ctx := context.Background()

	_, err := f.refresher.Refresh(ctx, "")
	require.ErrorIs(t, err, ErrRefreshMissing)

	_, err = f.refresher.Refresh(ctx, pair.AccessToken)
	require.Equal(t, KindTokenTypeMismatch, KindOf(err))
	require.Equal(t, "Invalid token type", Classify(err).Message)

	_, err = f.refresher.Refresh(ctx, "garbage")
	require.Equal(t, KindInvalidRefreshToken, KindOf(err))
	require.Equal(t, "Invalid refresh token", Classify(err).Message)

	f.at(testNow.Add(8 * 24 * time.Hour))
	_, err = f.refresher.Refresh(ctx, pair.RefreshToken)
	require.Equal(t, KindInvalidRefreshToken, KindOf(err))

	f.at(testNow)
	f.repo.Delete(f.user.ID)
	_, err = f.refresher.Refresh(ctx, pair.RefreshToken)
	require.Equal(t, KindUserNotFound, KindOf(err))
}

type blockingStore struct {
	users.Store
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) FindByID(ctx context.Context, id string) (users.User, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
	}
	<-s.release
	return s.Store.FindByID(ctx, id)
}

func TestRefresh_ConcurrentCallsShareOneRenewal(t *testing.T) {
	bs := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newRefreshFixture(t, func(s users.Store) users.Store {
		bs.Store = s
		return bs
	})
	pair := f.pair(t, testNow)

	const n = 8
	results := make([]Renewal, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.refresher.Refresh(context.Background(), pair.RefreshToken)
		}(i)
	}

	<-bs.entered
	time.Sleep(50 * time.Millisecond)
	close(bs.release)
	wg.Wait()

	require.Equal(t, int32(1), bs.calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].Pair, results[i].Pair)
	}
}

func TestRefresh_CallerCancellationDoesNotFailOthers(t *testing.T) {
	bs := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newRefreshFixture(t, func(s users.Store) users.Store {
		bs.Store = s
		return bs
	})
	pair := f.pair(t, testNow)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.refresher.Refresh(ctx, pair.RefreshToken)
		first <- err
	}()
	<-bs.entered

	second := make(chan error, 1)
	go func() {
		_, err := f.refresher.Refresh(context.Background(), pair.RefreshToken)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(bs.release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
}

/* ===================== AUTOMATIC PATH ===================== */

type autoResult struct {
	code    int
	body    map[string]any
	cookies map[string]*http.Cookie
	runs    int
}

func (f *refreshFixture) serve(t *testing.T, req *http.Request) autoResult {
	t.Helper()
	gin.SetMode(gin.TestMode)

	runs := 0
	r := gin.New()
	r.Use(ErrorClassifier(nil))
	r.GET("/protected", f.refresher.AutoRefresh(f.guard), func(c *gin.Context) {
		runs++
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return autoResult{code: w.Code, body: body, cookies: cookiesByName(w), runs: runs}
}

func protectedRequest(access, refresh string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if refresh != "" {
		req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	}
	return req
}

func TestAutoRefresh_ValidTokenPassesThrough(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)

	res := f.serve(t, protectedRequest(pair.AccessToken, pair.RefreshToken))
	require.Equal(t, http.StatusOK, res.code)
	require.Equal(t, 1, res.runs)
	require.Empty(t, res.cookies)
	require.Equal(t, f.user.ID, res.body["id"])
}

func TestAutoRefresh_RecoversExpiredAccessToken(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)
	f.at(testNow.Add(16 * time.Minute))

	res := f.serve(t, protectedRequest(pair.AccessToken, pair.RefreshToken))
	require.Equal(t, http.StatusOK, res.code)
	require.Equal(t, 1, res.runs)
	require.Equal(t, f.user.ID, res.body["id"])

	access, refresh := res.cookies[AccessCookieName], res.cookies[RefreshCookieName]
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	require.NotEqual(t, pair.AccessToken, access.Value)
	_, err := f.tokens.Verify(access.Value, TokenTypeAccess, testNow.Add(16*time.Minute))
	require.NoError(t, err)

	require.Len(t, f.events.OfType(audit.EventTypeTokenRefreshed), 1)
}

func TestAutoRefresh_RecoveryFailureClearsCookies(t *testing.T) {
	cases := map[string]func(f *refreshFixture, pair TokenPair) string{
		"no refresh cookie":       func(f *refreshFixture, pair TokenPair) string { return "" },
		"access token as refresh": func(f *refreshFixture, pair TokenPair) string { return pair.AccessToken },
		"garbage refresh":         func(f *refreshFixture, pair TokenPair) string { return "garbage" },
		"user deleted": func(f *refreshFixture, pair TokenPair) string {
			f.repo.Delete(f.user.ID)
			return pair.RefreshToken
		},
	}

	for name, refreshFor := range cases {
		t.Run(name, func(t *testing.T) {
			f := newRefreshFixture(t, nil)
			pair := f.pair(t, testNow)
			refresh := refreshFor(f, pair)
			f.at(testNow.Add(16 * time.Minute))

			res := f.serve(t, protectedRequest(pair.AccessToken, refresh))
			require.Equal(t, http.StatusUnauthorized, res.code)
			require.Equal(t, 0, res.runs)
			require.Equal(t, "REFRESH_FAILED", res.body["code"])
			require.Equal(t, "Token refresh failed, please login again", res.body["error"])

			for _, n := range []string{AccessCookieName, RefreshCookieName} {
				require.NotNil(t, res.cookies[n], n)
				require.Empty(t, res.cookies[n].Value)
				require.Less(t, res.cookies[n].MaxAge, 0)
			}
			require.Len(t, f.events.OfType(audit.EventTypeRefreshFailed), 1)
		})
	}
}

func TestAutoRefresh_ExpiredRefreshTokenFails(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)
	f.at(testNow.Add(8 * 24 * time.Hour))

	res := f.serve(t, protectedRequest(pair.AccessToken, pair.RefreshToken))
	require.Equal(t, http.StatusUnauthorized, res.code)
	require.Equal(t, "REFRESH_FAILED", res.body["code"])
}

func TestAutoRefresh_TerminalErrorsDoNotRefresh(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)

	cases := []struct {
		name   string
		access string
		code   string
		msg    string
	}{
		{name: "missing", access: "", code: "TOKEN_MISSING", msg: "Missing token"},
		{name: "malformed", access: "not-a-jwt", code: "TOKEN_MALFORMED", msg: "Invalid token"},
		{name: "refresh as access", access: pair.RefreshToken, code: "TOKEN_TYPE_MISMATCH", msg: "Invalid token type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.serve(t, protectedRequest(tc.access, pair.RefreshToken))
			require.Equal(t, http.StatusUnauthorized, res.code)
			require.Equal(t, 0, res.runs)
			require.Equal(t, tc.code, res.body["code"])
			require.Equal(t, tc.msg, res.body["error"])
			require.Empty(t, res.cookies)
		})
	}
}

func TestRequireAccessToken_NeverRefreshes(t *testing.T) {
	f := newRefreshFixture(t, nil)
	pair := f.pair(t, testNow)
	f.at(testNow.Add(16 * time.Minute))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorClassifier(nil))
	r.GET("/strict", RequireAccessToken(f.guard), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/strict", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: pair.RefreshToken})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"code":"TOKEN_EXPIRED"`)
	require.Empty(t, w.Result().Cookies())
}
