package middleware

import (
	"context"
	"net/http"
	"storefront-payments/internal/config"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/session"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const sessionKey = "session"

// CurrentSession returns the session loaded for this request. Handlers mounted
// outside the session middleware get an empty one that is never stored.
func CurrentSession(c echo.Context) *session.Data {
	if data, ok := c.Get(sessionKey).(*session.Data); ok {
		return data
	}
	data := &session.Data{}
	SetSession(c, data)
	return data
}

func SetSession(c echo.Context, data *session.Data) {
	c.Set(sessionKey, data)
}

// sessionLocks hands out one lock per session id. Entries live only while a
// request holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	held chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until id is free or ctx ends.
func (s *sessionLocks) acquire(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{held: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.held <- struct{}{}:
		return func() {
			<-l.held
			s.forget(id, l)
		}, nil
	case <-ctx.Done():
		s.forget(id, l)
		return nil, ctx.Err()
	}
}

func (s *sessionLocks) forget(id string, l *sessionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// Session loads the shopper session named by the session cookie before the
// handler runs and stores it afterwards, whatever the handler returned.
// Requests carrying the same session run one at a time, so every request
// sees the session its predecessor saved.
func Session(repo repository.SessionRepository, cfg config.Session) echo.MiddlewareFunc {
	locks := newSessionLocks()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			id := ""
			if cookie, err := c.Cookie(cfg.CookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					id = cookie.Value
				}
			}

			data := &session.Data{}
			if id != "" {
				release, err := locks.acquire(ctx, id)
				if err != nil {
					return err
				}
				defer release()

				raw, err := repo.Load(ctx, id)
				if err != nil {
					return err
				}
				if data, err = session.Decode(raw); err != nil {
					log.Warn().Err(err).Str("session_id", id).Msg("discarding unreadable session")
					data = &session.Data{}
				}
			} else {
				id = uuid.NewString()
			}

			expiresAt := time.Now().Add(cfg.TTL)
			c.SetCookie(&http.Cookie{
				Name:     cfg.CookieName,
				Value:    id,
				Path:     "/",
				Expires:  expiresAt,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			SetSession(c, data)

			handlerErr := next(c)

			raw, err := data.Encode()
			if err == nil {
				err = repo.Save(ctx, id, raw, expiresAt)
			}
			if err != nil {
				log.Error().Err(err).Str("session_id", id).Msg("session not saved")
				if handlerErr == nil {
					handlerErr = err
				}
			}
			return handlerErr
		}
	}
}
