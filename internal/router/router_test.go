package router

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/handler"
)

func TestRouteTable(t *testing.T) {
	e := echo.New()
	d := Deps{
		SessionSecret: "secret",
		Projects:      &handler.ProjectHandler{},
		Credits:       &handler.CreditHandler{},
		Published:     &handler.PublishedHandler{},
		Log:           zerolog.Nop(),
	}
	RegisterRoutes(e, nil)
	RegisterUser(e, d)
	RegisterPublished(e, d)

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		http.MethodGet + " /healthz",
		http.MethodGet + " /metrics",
		http.MethodPost + " /api/user/project",
		http.MethodGet + " /api/user/projects",
		http.MethodGet + " /api/user/project/:id",
		http.MethodGet + " /api/user/publish-toggle/:id",
		http.MethodGet + " /api/user/credits",
		http.MethodPost + " /api/project/revision/:id",
		http.MethodPost + " /api/project/rollback/:id/:versionId",
		http.MethodGet + " /api/project/rollback/:id/:versionId",
		http.MethodPut + " /api/project/save/:id",
		http.MethodDelete + " /api/project/:id",
		http.MethodGet + " /api/project/preview/:id",
		http.MethodGet + " /api/published",
		http.MethodGet + " /api/published/:id",
	} {
		if !got[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}
