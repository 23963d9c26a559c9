package measurements

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	. "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
)

//go:generate moq -rm -out measurementrepository_mock.go . MeasurementRepository

type MeasurementRepository interface {
	AddMeasurement(ctx context.Context, measurement *Measurement) error
	GetMeasurements(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Measurement, error)
	GetLatestMeasurements(ctx context.Context, organizationID uint) ([]Measurement, error)

	AddAlertEvent(ctx context.Context, event *AlertEvent) error
	GetAlertEvents(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]AlertEvent, error)
}

type measurementRepository struct {
	db *gorm.DB
}

func NewMeasurementRepository(db *gorm.DB) MeasurementRepository {
	return &measurementRepository{
		db: db,
	}
}

func (m *measurementRepository) AddMeasurement(ctx context.Context, measurement *Measurement) error {
	logger := logging.GetFromContext(ctx)

	err := m.db.WithContext(ctx).Omit(clause.Associations).Create(measurement).Error
	if err != nil {
		logger.Debug().Err(err).Uint("device", measurement.DeviceID).Msg("could not add measurement")
		return MapError(err)
	}

	return nil
}

// GetMeasurements returns the measurements of a device, newest first.
func (m *measurementRepository) GetMeasurements(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Measurement, error) {
	measurements := []Measurement{}

	query := NewCondition(conditions...).Apply(m.db.WithContext(ctx), "measurement")
	err := query.
		Where("measurement.device_id = ?", deviceID).
		Order("measurement.measured_at DESC, measurement.id DESC").
		Find(&measurements).Error
	if err != nil {
		return nil, MapError(err)
	}

	return measurements, nil
}

// GetLatestMeasurements returns the most recent measurement of every device in
// an organization that has been measured at all. Recency is decided by
// measured_at, with the id breaking ties, so backfilled readings never
// replace a newer one.
func (m *measurementRepository) GetLatestMeasurements(ctx context.Context, organizationID uint) ([]Measurement, error) {
	measurements := []Measurement{}

	newer := m.db.
		Table("measurement AS newer").
		Select("1").
		Where("newer.device_id = measurement.device_id AND newer.deleted_at IS NULL").
		Where("(newer.measured_at > measurement.measured_at OR (newer.measured_at = measurement.measured_at AND newer.id > measurement.id))")

	err := m.db.WithContext(ctx).
		Joins("JOIN device ON device.id = measurement.device_id").
		Where("device.organization_id = ? AND measurement.deleted_at IS NULL", organizationID).
		Where("NOT EXISTS (?)", newer).
		Order("measurement.device_id ASC").
		Find(&measurements).Error
	if err != nil {
		return nil, MapError(err)
	}

	return measurements, nil
}

func (m *measurementRepository) AddAlertEvent(ctx context.Context, event *AlertEvent) error {
	logger := logging.GetFromContext(ctx)

	err := m.db.WithContext(ctx).Omit(clause.Associations).Create(event).Error
	if err != nil {
		logger.Debug().Err(err).Uint("device", event.DeviceID).Msg("could not add alert event")
		return MapError(err)
	}

	return MapError(m.db.WithContext(ctx).First(&event.AlertRule, event.AlertRuleID).Error)
}

// GetAlertEvents returns the alert events of a device with their rules, newest first.
func (m *measurementRepository) GetAlertEvents(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]AlertEvent, error) {
	events := []AlertEvent{}

	query := NewCondition(conditions...).Apply(m.db.WithContext(ctx).Joins("AlertRule"), "alert_event")
	err := query.
		Where("alert_event.device_id = ?", deviceID).
		Order("alert_event.occurred_at DESC, alert_event.id DESC").
		Find(&events).Error
	if err != nil {
		return nil, MapError(err)
	}

	return events, nil
}
