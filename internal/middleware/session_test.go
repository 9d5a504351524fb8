package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/session"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCfg = config.Session{CookieName: "zenid", TTL: time.Hour}

func newSessionRepo(t *testing.T) repository.SessionRepository {
	t.Helper()
	db, err := client.OpenDatabase(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)
	return repository.NewSessionRepository(db)
}

func serve(t *testing.T, repo repository.SessionRepository, cookie *http.Cookie, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/ajax/cart_add", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Session(repo, sessionCfg)(h)(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCfg.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newSessionRepo(t)

	rec := serve(t, repo, nil, func(c echo.Context) error {
		sess := CurrentSession(c)
		sess.AddToCart(session.CartItem{ProductID: 3, Quantity: 2})
		return c.NoContent(http.StatusOK)
	})
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)

	var seen *session.Data
	rec = serve(t, repo, cookie, func(c echo.Context) error {
		seen = CurrentSession(c)
		return c.NoContent(http.StatusOK)
	})
	require.NotNil(t, seen)
	assert.Equal(t, 2, seen.CartCount())
	assert.Equal(t, cookie.Value, sessionCookie(t, rec).Value)
}

func TestSessionSavedWhenHandlerFails(t *testing.T) {
	repo := newSessionRepo(t)

	rec := serve(t, repo, nil, func(c echo.Context) error {
		CurrentSession(c).AddMessage("checkout", session.MessageError, "boom")
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	raw, err := repo.Load(context.Background(), sessionCookie(t, rec).Value)
	require.NoError(t, err)
	data, err := session.Decode(raw)
	require.NoError(t, err)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, "boom", data.Messages[0].Text)
}

func TestSessionIgnoresForeignCookie(t *testing.T) {
	repo := newSessionRepo(t)

	rec := serve(t, repo, &http.Cookie{Name: "zenid", Value: "not-a-uuid"}, func(c echo.Context) error {
		assert.Empty(t, CurrentSession(c).Cart)
		return c.NoContent(http.StatusOK)
	})
	assert.NotEqual(t, "not-a-uuid", sessionCookie(t, rec).Value)
}

func TestSessionDiscardsUnreadablePayload(t *testing.T) {
	repo := newSessionRepo(t)
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	require.NoError(t, repo.Save(context.Background(), id, "{broken", time.Now().Add(time.Hour)))

	rec := serve(t, repo, &http.Cookie{Name: "zenid", Value: id}, func(c echo.Context) error {
		assert.Zero(t, CurrentSession(c).CartCount())
		return c.NoContent(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, sessionCookie(t, rec).Value)
}

func TestSessionSerializesConcurrentRequests(t *testing.T) {
	repo := newSessionRepo(t)
	mw := Session(repo, sessionCfg)

	rec := serve(t, repo, nil, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	cookie := sessionCookie(t, rec)

	addOne := mw(func(c echo.Context) error {
		sess := CurrentSession(c)
		time.Sleep(20 * time.Millisecond)
		sess.AddToCart(session.CartItem{ProductID: 3, Quantity: 1})
		return c.NoContent(http.StatusOK)
	})

	const requests = 5
	e := echo.New()
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/ajax/cart_add", nil)
			req.AddCookie(cookie)
			errs <- addOne(e.NewContext(req, httptest.NewRecorder()))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	raw, err := repo.Load(context.Background(), cookie.Value)
	require.NoError(t, err)
	data, err := session.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, requests, data.CartCount())
}

func TestSessionLockHonorsContext(t *testing.T) {
	locks := newSessionLocks()
	release, err := locks.acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locks.acquire(context.Background(), "b")
	require.NoError(t, err)
	other()

	release()
	assert.Empty(t, locks.locks)
}
