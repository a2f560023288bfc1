package httpx

import (
	"log/slog"
	"net/http"

	rapo "github.com/t3eHawk/rapo"
	"github.com/t3eHawk/rapo/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Launcher ControlLauncher
	Controls *service.ControlService
	Reader   *service.ReaderService

	// Auth guards every /api/* route.
	Auth BearerConfig

	// Compression, when non-nil, enables gzip on JSON responses.
	Compression *CompressionConfig

	Logger *slog.Logger
}

// NewRouter creates and configures the API router. The returned handler
// carries the full middleware chain; callers wrap it into an
// http.Server as is.
func NewRouter(services RouterServices) http.Handler {
	if services.Logger == nil {
		services.Logger = slog.Default().With("component", "web_api")
	}

	mux := http.NewServeMux()

	runHandlers := &RunHandlers{Launcher: services.Launcher, Reader: services.Reader}
	controlHandlers := &ControlHandlers{Controls: services.Controls, Reader: services.Reader}

	registerAPIRoutes(mux, runHandlers, controlHandlers, services.Auth)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /{$}", http.HandlerFunc(indexHandler))

	var handler http.Handler = mux
	if services.Compression != nil {
		handler = Compression(*services.Compression)(handler)
	}
	handler = Recover(services.Logger)(handler)
	handler = Logging(services.Logger)(handler)
	handler = RequestID()(handler)
	return handler
}

// apiRoute describes one API endpoint for registration and for the
// /api/help catalog.
type apiRoute struct {
	Method      string           `json:"method"`
	Path        string           `json:"path"`
	Description string           `json:"description"`
	handler     http.HandlerFunc `json:"-"`
}

func apiRoutes(runs *RunHandlers, controls *ControlHandlers) []apiRoute {
	return []apiRoute{
		{http.MethodPost, "/api/run-control",
			"launch a run of the named control", runs.RunControl},
		{http.MethodPost, "/api/cancel-control",
			"request cancellation of a live run", runs.CancelControl},
		{http.MethodDelete, "/api/revoke-control-run",
			"revoke a finished run and delete its output records", runs.RevokeControlRun},
		{http.MethodDelete, "/api/delete-control-output-tables",
			"drop every output table of a control", controls.DeleteControlOutputTables},
		{http.MethodDelete, "/api/delete-control-temporary-tables",
			"drop the temp tables of a run", runs.DeleteControlTemporaryTables},
		{http.MethodGet, "/api/get-running-controls",
			"list runs currently in progress", runs.GetRunningControls},
		{http.MethodGet, "/api/get-all-controls",
			"list control configurations", controls.GetAllControls},
		{http.MethodGet, "/api/get-control-versions",
			"list archived revisions of a control", controls.GetControlVersions},
		{http.MethodGet, "/api/get-control-runs",
			"list recent run summaries", runs.GetControlRuns},
		{http.MethodGet, "/api/get-control-run",
			"read the full log row of one run", runs.GetControlRun},
		{http.MethodGet, "/api/read-control-logs",
			"read run log text by process or control", runs.ReadControlLogs},
		{http.MethodGet, "/api/get-datasources",
			"list readable tables and views", controls.GetDatasources},
		{http.MethodGet, "/api/get-datasource-columns",
			"describe the columns of a datasource", controls.GetDatasourceColumns},
		{http.MethodPost, "/api/save-control",
			"insert or update a control configuration", controls.SaveControl},
		{http.MethodDelete, "/api/delete-control",
			"delete a control configuration", controls.DeleteControl},
	}
}

func registerAPIRoutes(mux *http.ServeMux, runs *RunHandlers, controls *ControlHandlers, auth BearerConfig) {
	requireAuth := RequireBearer(auth)
	routes := apiRoutes(runs, controls)
	for _, route := range routes {
		mux.Handle(route.Method+" "+route.Path, requireAuth(route.handler))
	}
	mux.Handle("GET /api/help", requireAuth(helpHandler(routes)))
}

// helpHandler serves the endpoint catalog.
func helpHandler(routes []apiRoute) http.HandlerFunc {
	catalog := make([]apiRoute, len(routes))
	copy(catalog, routes)
	catalog = append(catalog, apiRoute{
		Method:      http.MethodGet,
		Path:        "/api/help",
		Description: "this endpoint catalog",
	})
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"endpoints": catalog})
	}
}

// indexHandler serves the embedded landing page.
func indexHandler(w http.ResponseWriter, r *http.Request) {
	page, err := rapo.WebFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		return
	}
}
