package gui

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

var tracer = otel.Tracer("iot-energy-mgmt/gui")

//go:embed templates/*.html
var templates embed.FS

var panelTemplate = template.Must(
	template.New("panel.html").
		Funcs(template.FuncMap{"deref": func(f *float64) float64 { return *f }}).
		ParseFS(templates, "templates/panel.html"),
)

func RegisterHandlers(ctx context.Context, router *chi.Mux, svc devicemanagement.DeviceManagement) *chi.Mux {
	log := logging.GetFromContext(ctx)

	router.Get("/gui/organizations/{organizationID}/panel", NewPanelHandler(log, svc))

	return router
}

// NewPanelHandler renders the consumption panel of an organization as html.
func NewPanelHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "render-panel")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := strconv.ParseUint(chi.URLParam(r, "organizationID"), 10, 32)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		organization, err := svc.GetOrganization(ctx, uint(organizationID))
		if err != nil {
			writeStatus(w, requestLogger, err)
			return
		}

		panel, err := svc.Panel(ctx, organization.ID)
		if err != nil {
			writeStatus(w, requestLogger, err)
			return
		}

		data := struct {
			Title string
			Panel types.Panel
		}{
			Title: fmt.Sprintf("%s devices", organization.Name),
			Panel: panel,
		}

		buf := &bytes.Buffer{}
		if err = panelTemplate.Execute(buf, data); err != nil {
			requestLogger.Error().Err(err).Msg("failed to render panel")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Add("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

func writeStatus(w http.ResponseWriter, logger zerolog.Logger, err error) {
	if errors.Is(err, database.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	logger.Error().Err(err).Msg("failed to load panel")
	w.WriteHeader(http.StatusInternalServerError)
}
