package devicemanagement

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/events"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/validation"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/catalog"
	dm "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/measurements"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

var tracer = otel.Tracer("iot-energy-mgmt/device")

type DeviceManagement interface {
	CreateOrganization(ctx context.Context, organization types.Organization) (types.Organization, error)
	GetOrganization(ctx context.Context, organizationID uint) (types.Organization, error)
	GetOrganizations(ctx context.Context, opts application.ListOptions) ([]types.Organization, error)
	DeleteOrganization(ctx context.Context, organizationID uint, soft bool) error

	CreateZone(ctx context.Context, organizationID uint, zone types.Zone) (types.Zone, error)
	GetZones(ctx context.Context, organizationID uint, opts application.ListOptions) ([]types.Zone, error)
	DeleteZone(ctx context.Context, zoneID uint, soft bool) error

	CreateDevice(ctx context.Context, organizationID uint, device types.Device) (types.Device, error)
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	GetDevices(ctx context.Context, organizationID uint, opts application.ListOptions) ([]types.Device, error)
	DeleteDevice(ctx context.Context, deviceID uint, soft bool) error

	AddMeasurement(ctx context.Context, deviceID uint, measurement types.Measurement) (types.Measurement, error)
	GetMeasurements(ctx context.Context, deviceID uint, opts application.ListOptions) ([]types.Measurement, error)
	AddAlertEvent(ctx context.Context, deviceID uint, event types.AlertEvent) (types.AlertEvent, error)
	GetAlertEvents(ctx context.Context, deviceID uint, opts application.ListOptions) ([]types.AlertEvent, error)

	Panel(ctx context.Context, organizationID uint) (types.Panel, error)

	Seed(ctx context.Context, devices io.Reader) error
}

type service struct {
	devices      dm.DeviceRepository
	measurements measurements.MeasurementRepository
	catalog      catalog.CatalogRepository
	sender       events.Sender
	panel        application.PanelConfig
}

func New(devices dm.DeviceRepository, m measurements.MeasurementRepository, c catalog.CatalogRepository, sender events.Sender, panel application.PanelConfig) DeviceManagement {
	if panel.CriticalLimit <= 0 {
		panel.CriticalLimit = application.DefaultCriticalLimit
	}

	return &service{
		devices:      devices,
		measurements: m,
		catalog:      c,
		sender:       sender,
		panel:        panel,
	}
}

func (s *service) CreateOrganization(ctx context.Context, organization types.Organization) (types.Organization, error) {
	if err := validation.Struct(organization); err != nil {
		return types.Organization{}, err
	}

	o := &database.Organization{Name: organization.Name}
	o.Status = organization.Status

	if err := s.devices.AddOrganization(ctx, o); err != nil {
		return types.Organization{}, err
	}

	return application.MapOrganization(*o), nil
}

func (s *service) GetOrganization(ctx context.Context, organizationID uint) (types.Organization, error) {
	o, err := s.devices.GetOrganization(ctx, organizationID)
	if err != nil {
		return types.Organization{}, err
	}
	return application.MapOrganization(o), nil
}

func (s *service) GetOrganizations(ctx context.Context, opts application.ListOptions) ([]types.Organization, error) {
	organizations, err := s.devices.GetOrganizations(ctx, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(organizations, application.MapOrganization), nil
}

func (s *service) DeleteOrganization(ctx context.Context, organizationID uint, soft bool) error {
	if soft {
		return s.devices.SoftDelete(ctx, &database.Organization{}, organizationID)
	}
	return s.devices.DeleteOrganization(ctx, organizationID)
}

func (s *service) CreateZone(ctx context.Context, organizationID uint, zone types.Zone) (types.Zone, error) {
	if err := validation.Struct(zone); err != nil {
		return types.Zone{}, err
	}

	if _, err := s.devices.GetOrganization(ctx, organizationID); err != nil {
		return types.Zone{}, err
	}

	z := &database.Zone{OrganizationID: organizationID, Name: zone.Name}
	z.Status = zone.Status

	if err := s.devices.AddZone(ctx, z); err != nil {
		return types.Zone{}, err
	}

	return application.MapZone(*z), nil
}

func (s *service) GetZones(ctx context.Context, organizationID uint, opts application.ListOptions) ([]types.Zone, error) {
	if _, err := s.devices.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}

	zones, err := s.devices.GetZones(ctx, organizationID, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(zones, application.MapZone), nil
}

func (s *service) DeleteZone(ctx context.Context, zoneID uint, soft bool) error {
	if soft {
		return s.devices.SoftDelete(ctx, &database.Zone{}, zoneID)
	}
	return s.devices.DeleteZone(ctx, zoneID)
}

// CreateDevice adds a device to an organization. The zone is not required to
// belong to the same organization as the device.
func (s *service) CreateDevice(ctx context.Context, organizationID uint, device types.Device) (types.Device, error) {
	if err := validation.Struct(device); err != nil {
		return types.Device{}, err
	}

	if _, err := s.devices.GetOrganization(ctx, organizationID); err != nil {
		return types.Device{}, err
	}

	zone, err := s.devices.GetZone(ctx, device.ZoneID)
	if err != nil {
		return types.Device{}, fieldNotFound(err, "zoneID")
	}

	if _, err := s.catalog.GetProduct(ctx, device.ProductID); err != nil {
		return types.Device{}, fieldNotFound(err, "productID")
	}

	if zone.OrganizationID != organizationID {
		logger := logging.GetFromContext(ctx)
		logger.Warn().
			Uint("organization", organizationID).
			Uint("zone", zone.ID).
			Uint("zoneOrganization", zone.OrganizationID).
			Msg("device placed in a zone of another organization")
	}

	d := &database.Device{
		OrganizationID: organizationID,
		ZoneID:         device.ZoneID,
		ProductID:      device.ProductID,
		Name:           device.Name,
		MaxPowerW:      device.MaxPowerW,
		Image:          device.Image,
		SerialNumber:   device.SerialNumber,
	}
	d.Status = device.Status

	if err := s.devices.AddDevice(ctx, d); err != nil {
		return types.Device{}, err
	}

	return s.GetDevice(ctx, d.ID)
}

func (s *service) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	d, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return types.Device{}, err
	}
	return application.MapDevice(d), nil
}

func (s *service) GetDevices(ctx context.Context, organizationID uint, opts application.ListOptions) ([]types.Device, error) {
	if _, err := s.devices.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}

	devices, err := s.devices.GetDevices(ctx, organizationID, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(devices, application.MapDevice), nil
}

func (s *service) DeleteDevice(ctx context.Context, deviceID uint, soft bool) error {
	if soft {
		return s.devices.SoftDelete(ctx, &database.Device{}, deviceID)
	}
	return s.devices.DeleteDevice(ctx, deviceID)
}

func (s *service) AddMeasurement(ctx context.Context, deviceID uint, measurement types.Measurement) (types.Measurement, error) {
	if err := validation.Struct(measurement); err != nil {
		return types.Measurement{}, err
	}

	if _, err := s.devices.GetDevice(ctx, deviceID); err != nil {
		return types.Measurement{}, err
	}

	if measurement.TriggeredAlertID != nil {
		if _, err := s.catalog.GetAlertRule(ctx, *measurement.TriggeredAlertID); err != nil {
			return types.Measurement{}, fieldNotFound(err, "triggeredAlertID")
		}
	}

	m := &database.Measurement{
		DeviceID:         deviceID,
		MeasuredAt:       measurement.MeasuredAt.UTC(),
		EnergyKWh:        measurement.EnergyKWh,
		TriggeredAlertID: measurement.TriggeredAlertID,
	}

	if err := s.measurements.AddMeasurement(ctx, m); err != nil {
		return types.Measurement{}, err
	}

	return application.MapMeasurement(*m), nil
}

func (s *service) GetMeasurements(ctx context.Context, deviceID uint, opts application.ListOptions) ([]types.Measurement, error) {
	if _, err := s.devices.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	result, err := s.measurements.GetMeasurements(ctx, deviceID, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(result, application.MapMeasurement), nil
}

// AddAlertEvent records that a rule fired for a device and notifies the
// subscribers of recorded alert events. A failed notification does not undo
// the record.
func (s *service) AddAlertEvent(ctx context.Context, deviceID uint, event types.AlertEvent) (result types.AlertEvent, err error) {
	ctx, span := tracer.Start(ctx, "add-alert-event")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = validation.Struct(event); err != nil {
		return types.AlertEvent{}, err
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return types.AlertEvent{}, err
	}

	if _, err = s.catalog.GetAlertRule(ctx, event.AlertRuleID); err != nil {
		return types.AlertEvent{}, fieldNotFound(err, "alertRuleID")
	}

	e := &database.AlertEvent{
		DeviceID:    deviceID,
		AlertRuleID: event.AlertRuleID,
		OccurredAt:  event.OccurredAt.UTC(),
		Message:     event.Message,
	}

	if err = s.measurements.AddAlertEvent(ctx, e); err != nil {
		return types.AlertEvent{}, err
	}

	recorded := types.AlertEventRecorded{
		AlertEventID:   e.ID,
		DeviceID:       device.ID,
		DeviceName:     device.Name,
		OrganizationID: device.OrganizationID,
		AlertRuleID:    e.AlertRuleID,
		AlertRule:      e.AlertRule.Name,
		Severity:       e.AlertRule.Severity,
		Message:        e.Message,
		Timestamp:      e.OccurredAt,
	}

	if sendErr := s.sender.Send(ctx, recorded); sendErr != nil {
		logger := logging.GetFromContext(ctx)
		logger.Error().Err(sendErr).Uint("alertEvent", e.ID).Msg("failed to send alert event notification")
	}

	return application.MapAlertEvent(*e), nil
}

func (s *service) GetAlertEvents(ctx context.Context, deviceID uint, opts application.ListOptions) ([]types.AlertEvent, error) {
	if _, err := s.devices.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	result, err := s.measurements.GetAlertEvents(ctx, deviceID, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(result, application.MapAlertEvent), nil
}

// Panel returns the latest consumption of each device of an organization
// and counts the devices whose latest consumption exceeds the critical limit.
func (s *service) Panel(ctx context.Context, organizationID uint) (types.Panel, error) {
	devices, err := s.GetDevices(ctx, organizationID, application.ListOptions{})
	if err != nil {
		return types.Panel{}, err
	}

	latest, err := s.measurements.GetLatestMeasurements(ctx, organizationID)
	if err != nil {
		return types.Panel{}, err
	}

	latestByDevice := make(map[uint]database.Measurement, len(latest))
	for _, m := range latest {
		latestByDevice[m.DeviceID] = m
	}

	panel := types.Panel{
		OrganizationID: organizationID,
		CriticalLimit:  s.panel.CriticalLimit,
		Devices:        make([]types.PanelDevice, 0, len(devices)),
	}

	for _, d := range devices {
		pd := types.PanelDevice{
			DeviceID: d.ID,
			Name:     d.Name,
			Zone:     d.Zone,
			Category: d.Category,
		}

		if m, ok := latestByDevice[d.ID]; ok {
			kwh, at := m.EnergyKWh, m.MeasuredAt
			pd.LatestKWh = &kwh
			pd.MeasuredAt = &at
			pd.Critical = kwh > s.panel.CriticalLimit
		}

		if pd.Critical {
			panel.CriticalCount++
		}

		panel.Devices = append(panel.Devices, pd)
	}

	return panel, nil
}

func (s *service) Seed(ctx context.Context, devices io.Reader) error {
	return s.devices.Seed(ctx, devices)
}

func fieldNotFound(err error, field string) error {
	if errors.Is(err, database.ErrNotFound) {
		return validation.NewValidationError(field, "does not exist")
	}
	return fmt.Errorf("failed to look up %s: %w", field, err)
}
