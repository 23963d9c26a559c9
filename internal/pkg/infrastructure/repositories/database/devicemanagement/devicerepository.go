package devicemanagement

import (
	"context"
	"errors"
	"io"

	. "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{
		db: db,
	}
}

//go:generate moq -rm -out devicerepository_mock.go . DeviceRepository

type DeviceRepository interface {
	AddOrganization(ctx context.Context, organization *Organization) error
	GetOrganization(ctx context.Context, organizationID uint) (Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (Organization, error)
	GetOrganizations(ctx context.Context, conditions ...ConditionFunc) ([]Organization, error)
	DeleteOrganization(ctx context.Context, organizationID uint) error

	AddZone(ctx context.Context, zone *Zone) error
	GetZone(ctx context.Context, zoneID uint) (Zone, error)
	GetZoneByName(ctx context.Context, organizationID uint, name string) (Zone, error)
	GetZones(ctx context.Context, organizationID uint, conditions ...ConditionFunc) ([]Zone, error)
	DeleteZone(ctx context.Context, zoneID uint) error

	AddDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, deviceID uint) (Device, error)
	GetDeviceByName(ctx context.Context, organizationID uint, name string) (Device, error)
	GetDevices(ctx context.Context, organizationID uint, conditions ...ConditionFunc) ([]Device, error)
	DeleteDevice(ctx context.Context, deviceID uint) error

	SoftDelete(ctx context.Context, model any, id uint) error

	Seed(ctx context.Context, reader io.Reader) error
}

type deviceRepository struct {
	db *gorm.DB
}

// getDevicesQuery loads a device together with everything a listing shows
// about it in a single statement.
func getDevicesQuery(db *gorm.DB) *gorm.DB {
	return db.Joins("Organization").Joins("Zone").Joins("Product").Joins("Product.Category")
}

func (d *deviceRepository) AddOrganization(ctx context.Context, organization *Organization) error {
	return d.create(ctx, organization)
}

func (d *deviceRepository) GetOrganization(ctx context.Context, organizationID uint) (Organization, error) {
	organization := Organization{}
	err := d.db.WithContext(ctx).First(&organization, organizationID).Error
	if err != nil {
		return Organization{}, MapError(err)
	}
	return organization, nil
}

func (d *deviceRepository) GetOrganizationByName(ctx context.Context, name string) (Organization, error) {
	organization := Organization{}
	err := d.db.WithContext(ctx).Where(&Organization{Name: name}).First(&organization).Error
	if err != nil {
		return Organization{}, MapError(err)
	}
	return organization, nil
}

func (d *deviceRepository) GetOrganizations(ctx context.Context, conditions ...ConditionFunc) ([]Organization, error) {
	organizations := []Organization{}

	query := NewCondition(conditions...).Apply(d.db.WithContext(ctx), "organization")
	err := query.Order("organization.name ASC").Find(&organizations).Error
	if err != nil {
		return nil, MapError(err)
	}

	return organizations, nil
}

func (d *deviceRepository) DeleteOrganization(ctx context.Context, organizationID uint) error {
	return d.delete(ctx, &Organization{}, organizationID)
}

func (d *deviceRepository) AddZone(ctx context.Context, zone *Zone) error {
	return d.create(ctx, zone)
}

func (d *deviceRepository) GetZone(ctx context.Context, zoneID uint) (Zone, error) {
	zone := Zone{}
	err := d.db.WithContext(ctx).Joins("Organization").First(&zone, "zone.id = ?", zoneID).Error
	if err != nil {
		return Zone{}, MapError(err)
	}
	return zone, nil
}

func (d *deviceRepository) GetZoneByName(ctx context.Context, organizationID uint, name string) (Zone, error) {
	zone := Zone{}
	err := d.db.WithContext(ctx).
		Where("organization_id = ? AND name = ?", organizationID, name).
		First(&zone).Error
	if err != nil {
		return Zone{}, MapError(err)
	}
	return zone, nil
}

func (d *deviceRepository) GetZones(ctx context.Context, organizationID uint, conditions ...ConditionFunc) ([]Zone, error) {
	zones := []Zone{}

	query := NewCondition(conditions...).Apply(d.db.WithContext(ctx), "zone")
	err := query.Where("zone.organization_id = ?", organizationID).Order("zone.name ASC").Find(&zones).Error
	if err != nil {
		return nil, MapError(err)
	}

	return zones, nil
}

func (d *deviceRepository) DeleteZone(ctx context.Context, zoneID uint) error {
	return d.delete(ctx, &Zone{}, zoneID)
}

func (d *deviceRepository) AddDevice(ctx context.Context, device *Device) error {
	return d.create(ctx, device)
}

func (d *deviceRepository) GetDevice(ctx context.Context, deviceID uint) (Device, error) {
	device := Device{}
	err := getDevicesQuery(d.db.WithContext(ctx)).First(&device, "device.id = ?", deviceID).Error
	if err != nil {
		return Device{}, MapError(err)
	}
	return device, nil
}

func (d *deviceRepository) GetDeviceByName(ctx context.Context, organizationID uint, name string) (Device, error) {
	device := Device{}
	err := getDevicesQuery(d.db.WithContext(ctx)).
		Where("device.organization_id = ? AND device.name = ?", organizationID, name).
		First(&device).Error
	if err != nil {
		return Device{}, MapError(err)
	}
	return device, nil
}

// GetDevices returns the devices of an organization with their organization,
// zone, product and product category loaded by one query.
func (d *deviceRepository) GetDevices(ctx context.Context, organizationID uint, conditions ...ConditionFunc) ([]Device, error) {
	devices := []Device{}

	query := NewCondition(conditions...).Apply(getDevicesQuery(d.db.WithContext(ctx)), "device")
	err := query.Where("device.organization_id = ?", organizationID).Order("device.name ASC").Find(&devices).Error
	if err != nil {
		return nil, MapError(err)
	}

	return devices, nil
}

func (d *deviceRepository) DeleteDevice(ctx context.Context, deviceID uint) error {
	return d.delete(ctx, &Device{}, deviceID)
}

func (d *deviceRepository) SoftDelete(ctx context.Context, model any, id uint) error {
	return SoftDelete(ctx, d.db, model, id)
}

func (d *deviceRepository) create(ctx context.Context, value any) error {
	err := d.db.WithContext(ctx).Omit(clause.Associations).Create(value).Error
	if err != nil {
		logger := logging.GetFromContext(ctx)

		err = MapError(err)
		if !errors.Is(err, ErrConstraintViolation) {
			logger.Error().Err(err).Msg("gorm error")
		}
		return err
	}
	return nil
}

func (d *deviceRepository) delete(ctx context.Context, model any, id uint) error {
	result := d.db.WithContext(ctx).Delete(model, id)
	if result.Error != nil {
		return MapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
