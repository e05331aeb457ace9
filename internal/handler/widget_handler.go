package handler

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/weather-widget/internal/config"
	"github.com/fakhrymubarak/weather-widget/internal/middleware"
	"github.com/fakhrymubarak/weather-widget/internal/model"
	"github.com/fakhrymubarak/weather-widget/internal/session"
	"github.com/fakhrymubarak/weather-widget/internal/widget"
)

const SessionCookie = "widget_session"

//go:embed templates/widget.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/widget.html"))

type WidgetHandler struct {
	Sessions      *session.Registry
	HalveHumidity bool
	// WaitTimeout bounds ?wait=true searches.
	WaitTimeout time.Duration
	log         *zap.SugaredLogger
}

func NewWidgetHandler(sessions *session.Registry, halveHumidity bool, log *zap.SugaredLogger) *WidgetHandler {
	return &WidgetHandler{
		Sessions:      sessions,
		HalveHumidity: halveHumidity,
		WaitTimeout:   config.GetSearchWaitTimeout(),
		log:           log,
	}
}

// Register mounts the page and the JSON API on router. Search endpoints go
// through the rate limiter.
func (h *WidgetHandler) Register(router *mux.Router) {
	router.HandleFunc("/", h.HandlePage).Methods(http.MethodGet)
	router.Handle("/", middleware.RateLimitMiddleware(http.HandlerFunc(h.HandleSubmit))).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.HandleState).Methods(http.MethodGet)
	api.HandleFunc("/city", h.HandleSetCity).Methods(http.MethodPut)
	api.HandleFunc("/toggle", h.HandleToggle).Methods(http.MethodPost)
	api.Handle("/search", middleware.RateLimitMiddleware(http.HandlerFunc(h.HandleSearch))).Methods(http.MethodPost)
	api.HandleFunc("/session", h.HandleUnmount).Methods(http.MethodDelete)
}

func (h *WidgetHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Errorw("could not encode json", "error", err)
	}
}

// controllerFor returns the widget of the caller's session, mounting one and
// setting the cookie when the session is new or expired.
func (h *WidgetHandler) controllerFor(w http.ResponseWriter, r *http.Request) *widget.Controller {
	var current string
	if c, err := r.Cookie(SessionCookie); err == nil {
		current = c.Value
	}
	id, ctrl := h.Sessions.GetOrMount(current)
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return ctrl
}

func (h *WidgetHandler) view(ctrl *widget.Controller) (model.WeatherView, error) {
	return widget.Render(ctrl.State(), h.HalveHumidity)
}

func (h *WidgetHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controllerFor(w, r)
	view, err := h.view(ctrl)
	if err != nil {
		view.Error = err.Error()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, view); err != nil {
		h.log.Errorw("could not render page", "error", err)
	}
}

// HandleSubmit is the form post: the typed city is bound first, then the
// search runs and the browser is sent back to the page.
func (h *WidgetHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controllerFor(w, r)
	ctrl.SetCity(r.FormValue("city"))
	ctrl.Search()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WidgetHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, h.controllerFor(w, r))
}

func (h *WidgetHandler) respondState(w http.ResponseWriter, ctrl *widget.Controller) {
	view, err := h.view(ctrl)
	if err != nil {
		resp := model.ErrorResponse(err.Error())
		resp.Data = view
		h.writeJSONResponse(w, http.StatusBadGateway, resp)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, model.SuccessResponse(view))
}

type setCityRequest struct {
	City *string `json:"city"`
}

func (h *WidgetHandler) HandleSetCity(w http.ResponseWriter, r *http.Request) {
	var req setCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.City == nil {
		h.writeJSONResponse(w, http.StatusBadRequest, model.ErrorResponse("Body must be a JSON object with a 'city' string"))
		return
	}
	ctrl := h.controllerFor(w, r)
	ctrl.SetCity(*req.City)
	h.respondState(w, ctrl)
}

func (h *WidgetHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controllerFor(w, r)
	ctrl.ToggleShowWeather()
	h.respondState(w, ctrl)
}

// HandleSearch runs Search. With ?wait=true it answers once every fetch
// cycle of the widget has resolved, the client goes away, or WaitTimeout
// passes; the state is returned as it stands either way.
func (h *WidgetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controllerFor(w, r)
	if city := r.URL.Query().Get("city"); city != "" {
		ctrl.SetCity(city)
	}
	ctrl.Search()
	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), h.WaitTimeout)
		err := ctrl.Wait(ctx)
		cancel()
		if err != nil {
			h.log.Warnw("search wait aborted", "error", err)
		}
	}
	h.respondState(w, ctrl)
}

func (h *WidgetHandler) HandleUnmount(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || !h.Sessions.Unmount(c.Value) {
		h.writeJSONResponse(w, http.StatusNotFound, model.ErrorResponse("No mounted widget for this session"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	h.writeJSONResponse(w, http.StatusOK, model.Response{Message: "Unmounted"})
}

func (h *WidgetHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, model.Response{Message: "ok"})
}
