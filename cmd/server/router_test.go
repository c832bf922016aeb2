package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	id "trustlane/pkg/domain"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/requestcontext"
	"trustlane/pkg/testutil"
)

type whoAmI struct{}

func (whoAmI) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		a := requestcontext.Actor(r.Context())
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"role": string(a.Role)})
	})
}

func TestRouter(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ok := healthCheck{name: "database", ping: func(context.Context) error { return nil }}
	down := healthCheck{name: "redis", ping: func(context.Context) error { return errors.New("refused") }}

	t.Run("healthz needs no actor", func(t *testing.T) {
		router := newRouter(logger, nil, nil, whoAmI{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("readyz reports each dependency", func(t *testing.T) {
		router := newRouter(logger, nil, []healthCheck{ok, down}, whoAmI{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/readyz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		body := testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Equal(t, "ok", (*body)["database"])
		assert.Equal(t, "unavailable", (*body)["redis"])
	})

	t.Run("readyz is ok when every dependency answers", func(t *testing.T) {
		router := newRouter(logger, nil, []healthCheck{ok}, whoAmI{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/readyz"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("module routes require an actor", func(t *testing.T) {
		router := newRouter(logger, nil, nil, whoAmI{})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("actor headers reach the handler", func(t *testing.T) {
		router := newRouter(logger, nil, nil, whoAmI{})
		req := testutil.WithActorHeaders(testutil.NewRequest(t, http.MethodGet, "/whoami"), testutil.NewActor(id.RoleSponsor))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Equal(t, string(id.RoleSponsor), (*body)["role"])
	})
}
