package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/catalog"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

var tracer = otel.Tracer("iot-energy-mgmt/api")

func RegisterHandlers(ctx context.Context, router *chi.Mux, catalogSvc catalog.CatalogService, svc devicemanagement.DeviceManagement) *chi.Mux {
	log := logging.GetFromContext(ctx)

	router.Route("/api/v0", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", getCategoriesHandler(log, catalogSvc))
			r.Post("/", createCategoryHandler(log, catalogSvc))
			r.Delete("/{categoryID}", deleteCategoryHandler(log, catalogSvc))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", getProductsHandler(log, catalogSvc))
			r.Post("/", createProductHandler(log, catalogSvc))
			r.Get("/{productID}", getProductHandler(log, catalogSvc))
			r.Delete("/{productID}", deleteProductHandler(log, catalogSvc))
			r.Get("/{productID}/alert-rules", getProductAlertRulesHandler(log, catalogSvc))
			r.Get("/{productID}/thresholds", getProductThresholdsHandler(log, catalogSvc))
			r.Get("/{productID}/alert-rules/{ruleID}/thresholds", getThresholdsHandler(log, catalogSvc))
		})

		r.Route("/alert-rules", func(r chi.Router) {
			r.Get("/", getAlertRulesHandler(log, catalogSvc))
			r.Post("/", createAlertRuleHandler(log, catalogSvc))
			r.Get("/{ruleID}", getAlertRuleHandler(log, catalogSvc))
			r.Delete("/{ruleID}", deleteAlertRuleHandler(log, catalogSvc))
			r.Post("/{ruleID}/products/{productID}", linkProductHandler(log, catalogSvc))
			r.Put("/{ruleID}/products/{productID}", updateLinkHandler(log, catalogSvc))
			r.Delete("/{ruleID}/products/{productID}", unlinkProductHandler(log, catalogSvc))
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", getOrganizationsHandler(log, svc))
			r.Post("/", createOrganizationHandler(log, svc))
			r.Get("/{organizationID}", getOrganizationHandler(log, svc))
			r.Delete("/{organizationID}", deleteOrganizationHandler(log, svc))
			r.Get("/{organizationID}/zones", getZonesHandler(log, svc))
			r.Post("/{organizationID}/zones", createZoneHandler(log, svc))
			r.Get("/{organizationID}/devices", getDevicesHandler(log, svc))
			r.Post("/{organizationID}/devices", createDeviceHandler(log, svc))
			r.Get("/{organizationID}/panel", getPanelHandler(log, svc))
		})

		r.Delete("/zones/{zoneID}", deleteZoneHandler(log, svc))

		r.Route("/devices/{deviceID}", func(r chi.Router) {
			r.Get("/", getDeviceHandler(log, svc))
			r.Delete("/", deleteDeviceHandler(log, svc))
			r.Get("/measurements", getMeasurementsHandler(log, svc))
			r.Post("/measurements", addMeasurementHandler(log, svc))
			r.Get("/alert-events", getAlertEventsHandler(log, svc))
			r.Post("/alert-events", addAlertEventHandler(log, svc))
		})
	})

	return router
}

func getCategoriesHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-categories")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		opts := listOptions(r)

		categories, err := svc.GetCategories(ctx, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch categories", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(categories, opts.Offset, opts.Limit))
	}
}

func createCategoryHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-category")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var category types.Category
		if err = decode(r, &category); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		category, err = svc.CreateCategory(ctx, category)
		if err != nil {
			writeError(w, requestLogger, "unable to create category", err)
			return
		}

		writeJSON(w, http.StatusCreated, category)
	}
}

func deleteCategoryHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-category")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		categoryID, err := idParam(r, "categoryID")
		if err != nil {
			writeError(w, requestLogger, "invalid category id", err)
			return
		}

		err = svc.DeleteCategory(ctx, categoryID, softDelete(r))
		if err != nil {
			writeError(w, requestLogger, "unable to delete category", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getProductsHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-products")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		opts := listOptions(r)

		products, err := svc.GetProducts(ctx, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch products", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(products, opts.Offset, opts.Limit))
	}
}

func getProductHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-product")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		productID, err := idParam(r, "productID")
		if err != nil {
			writeError(w, requestLogger, "invalid product id", err)
			return
		}

		product, err := svc.GetProduct(ctx, productID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch product", err)
			return
		}

		writeJSON(w, http.StatusOK, product)
	}
}

func createProductHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-product")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var product types.Product
		if err = decode(r, &product); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		product, err = svc.CreateProduct(ctx, product)
		if err != nil {
			writeError(w, requestLogger, "unable to create product", err)
			return
		}

		writeJSON(w, http.StatusCreated, product)
	}
}

func deleteProductHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-product")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		productID, err := idParam(r, "productID")
		if err != nil {
			writeError(w, requestLogger, "invalid product id", err)
			return
		}

		err = svc.DeleteProduct(ctx, productID, softDelete(r))
		if err != nil {
			writeError(w, requestLogger, "unable to delete product", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getProductAlertRulesHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-product-alert-rules")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		productID, err := idParam(r, "productID")
		if err != nil {
			writeError(w, requestLogger, "invalid product id", err)
			return
		}

		links, err := svc.GetProductAlertRules(ctx, productID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch alert rules of product", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(links, 0, 0))
	}
}

func getProductThresholdsHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-product-thresholds")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		productID, err := idParam(r, "productID")
		if err != nil {
			writeError(w, requestLogger, "invalid product id", err)
			return
		}

		thresholds, err := svc.ProductThresholds(ctx, productID)
		if err != nil {
			writeError(w, requestLogger, "unable to resolve thresholds of product", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(thresholds, 0, 0))
	}
}

func getThresholdsHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-thresholds")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		productID, err := idParam(r, "productID")
		if err != nil {
			writeError(w, requestLogger, "invalid product id", err)
			return
		}

		ruleID, err := idParam(r, "ruleID")
		if err != nil {
			writeError(w, requestLogger, "invalid alert rule id", err)
			return
		}

		requestLogger = requestLogger.With().Uint("product", productID).Uint("alertRule", ruleID).Logger()

		thresholds, err := svc.Thresholds(ctx, productID, ruleID)
		if err != nil {
			writeError(w, requestLogger, "unable to resolve thresholds", err)
			return
		}

		writeJSON(w, http.StatusOK, thresholds)
	}
}

func getAlertRulesHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-alert-rules")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		opts := listOptions(r)

		rules, err := svc.GetAlertRules(ctx, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch alert rules", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(rules, opts.Offset, opts.Limit))
	}
}

func getAlertRuleHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-alert-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		ruleID, err := idParam(r, "ruleID")
		if err != nil {
			writeError(w, requestLogger, "invalid alert rule id", err)
			return
		}

		rule, err := svc.GetAlertRule(ctx, ruleID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch alert rule", err)
			return
		}

		writeJSON(w, http.StatusOK, rule)
	}
}

func createAlertRuleHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-alert-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var rule types.AlertRule
		if err = decode(r, &rule); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		rule, err = svc.CreateAlertRule(ctx, rule)
		if err != nil {
			writeError(w, requestLogger, "unable to create alert rule", err)
			return
		}

		writeJSON(w, http.StatusCreated, rule)
	}
}

func deleteAlertRuleHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-alert-rule")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		ruleID, err := idParam(r, "ruleID")
		if err != nil {
			writeError(w, requestLogger, "invalid alert rule id", err)
			return
		}

		err = svc.DeleteAlertRule(ctx, ruleID, softDelete(r))
		if err != nil {
			writeError(w, requestLogger, "unable to delete alert rule", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// linkFromRequest reads the optional override of a link from the body and
// takes the product and rule from the path.
func linkFromRequest(r *http.Request) (types.ProductAlertRule, error) {
	link := types.ProductAlertRule{}
	if err := decode(r, &link); err != nil {
		return link, err
	}

	var err error

	link.AlertRuleID, err = idParam(r, "ruleID")
	if err != nil {
		return link, err
	}

	link.ProductID, err = idParam(r, "productID")
	return link, err
}

func linkProductHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "link-product")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		link, err := linkFromRequest(r)
		if err != nil {
			writeError(w, requestLogger, "invalid link", err)
			return
		}

		link, err = svc.LinkProduct(ctx, link)
		if err != nil {
			writeError(w, requestLogger, "unable to link product to alert rule", err)
			return
		}

		writeJSON(w, http.StatusCreated, link)
	}
}

func updateLinkHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-link")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		link, err := linkFromRequest(r)
		if err != nil {
			writeError(w, requestLogger, "invalid link", err)
			return
		}

		link, err = svc.UpdateLink(ctx, link)
		if err != nil {
			writeError(w, requestLogger, "unable to update link", err)
			return
		}

		writeJSON(w, http.StatusOK, link)
	}
}

func unlinkProductHandler(log zerolog.Logger, svc catalog.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "unlink-product")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		link, err := linkFromRequest(r)
		if err != nil {
			writeError(w, requestLogger, "invalid link", err)
			return
		}

		err = svc.UnlinkProduct(ctx, link.ProductID, link.AlertRuleID)
		if err != nil {
			writeError(w, requestLogger, "unable to unlink product from alert rule", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
