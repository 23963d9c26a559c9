package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

func getOrganizationsHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-organizations")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		opts := listOptions(r)

		organizations, err := svc.GetOrganizations(ctx, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch organizations", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(organizations, opts.Offset, opts.Limit))
	}
}

func getOrganizationHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-organization")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		organization, err := svc.GetOrganization(ctx, organizationID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch organization", err)
			return
		}

		writeJSON(w, http.StatusOK, organization)
	}
}

func createOrganizationHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-organization")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var organization types.Organization
		if err = decode(r, &organization); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		organization, err = svc.CreateOrganization(ctx, organization)
		if err != nil {
			writeError(w, requestLogger, "unable to create organization", err)
			return
		}

		writeJSON(w, http.StatusCreated, organization)
	}
}

func deleteOrganizationHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-organization")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		err = svc.DeleteOrganization(ctx, organizationID, softDelete(r))
		if err != nil {
			writeError(w, requestLogger, "unable to delete organization", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getZonesHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-zones")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		opts := listOptions(r)

		zones, err := svc.GetZones(ctx, organizationID, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch zones", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(zones, opts.Offset, opts.Limit))
	}
}

func createZoneHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-zone")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		var zone types.Zone
		if err = decode(r, &zone); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		zone, err = svc.CreateZone(ctx, organizationID, zone)
		if err != nil {
			writeError(w, requestLogger, "unable to create zone", err)
			return
		}

		writeJSON(w, http.StatusCreated, zone)
	}
}

func deleteZoneHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-zone")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		zoneID, err := idParam(r, "zoneID")
		if err != nil {
			writeError(w, requestLogger, "invalid zone id", err)
			return
		}

		err = svc.DeleteZone(ctx, zoneID, softDelete(r))
		if err != nil {
			writeError(w, requestLogger, "unable to delete zone", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getDevicesHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-devices")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		opts := listOptions(r)

		devices, err := svc.GetDevices(ctx, organizationID, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch devices", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(devices, opts.Offset, opts.Limit))
	}
}

func createDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		var device types.Device
		if err = decode(r, &device); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		device, err = svc.CreateDevice(ctx, organizationID, device)
		if err != nil {
			writeError(w, requestLogger, "unable to create device", err)
			return
		}

		writeJSON(w, http.StatusCreated, device)
	}
}

func getDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceID, err := idParam(r, "deviceID")
		if err != nil {
			writeError(w, requestLogger, "invalid device id", err)
			return
		}

		requestLogger = requestLogger.With().Uint("device", deviceID).Logger()

		device, err := svc.GetDevice(ctx, deviceID)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch device", err)
			return
		}

		requestLogger.Debug().Msg("returning information about device")

		writeJSON(w, http.StatusOK, device)
	}
}

func deleteDeviceHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceID, err := idParam(r, "deviceID")
		if err != nil {
			writeError(w, requestLogger, "invalid device id", err)
			return
		}

		err = svc.DeleteDevice(ctx, deviceID, softDelete(r))
		if err != nil {
			writeError(w, requestLogger, "unable to delete device", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getMeasurementsHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-measurements")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceID, err := idParam(r, "deviceID")
		if err != nil {
			writeError(w, requestLogger, "invalid device id", err)
			return
		}

		opts := listOptions(r)

		measurements, err := svc.GetMeasurements(ctx, deviceID, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch measurements", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(measurements, opts.Offset, opts.Limit))
	}
}

func addMeasurementHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "add-measurement")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceID, err := idParam(r, "deviceID")
		if err != nil {
			writeError(w, requestLogger, "invalid device id", err)
			return
		}

		var measurement types.Measurement
		if err = decode(r, &measurement); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		measurement, err = svc.AddMeasurement(ctx, deviceID, measurement)
		if err != nil {
			writeError(w, requestLogger, "unable to add measurement", err)
			return
		}

		writeJSON(w, http.StatusCreated, measurement)
	}
}

func getAlertEventsHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-alert-events")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceID, err := idParam(r, "deviceID")
		if err != nil {
			writeError(w, requestLogger, "invalid device id", err)
			return
		}

		opts := listOptions(r)

		alertEvents, err := svc.GetAlertEvents(ctx, deviceID, opts)
		if err != nil {
			writeError(w, requestLogger, "unable to fetch alert events", err)
			return
		}

		writeJSON(w, http.StatusOK, types.NewCollection(alertEvents, opts.Offset, opts.Limit))
	}
}

func addAlertEventHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "add-alert-event")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceID, err := idParam(r, "deviceID")
		if err != nil {
			writeError(w, requestLogger, "invalid device id", err)
			return
		}

		var event types.AlertEvent
		if err = decode(r, &event); err != nil {
			writeError(w, requestLogger, "unable to read body", err)
			return
		}

		event, err = svc.AddAlertEvent(ctx, deviceID, event)
		if err != nil {
			writeError(w, requestLogger, "unable to add alert event", err)
			return
		}

		writeJSON(w, http.StatusCreated, event)
	}
}

func getPanelHandler(log zerolog.Logger, svc devicemanagement.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-panel")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		organizationID, err := idParam(r, "organizationID")
		if err != nil {
			writeError(w, requestLogger, "invalid organization id", err)
			return
		}

		panel, err := svc.Panel(ctx, organizationID)
		if err != nil {
			writeError(w, requestLogger, "unable to build panel", err)
			return
		}

		writeJSON(w, http.StatusOK, panel)
	}
}
