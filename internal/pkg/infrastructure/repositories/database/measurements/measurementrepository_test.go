package measurements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"gorm.io/gorm"

	. "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
)

func TestGetMeasurementsNewestFirst(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	f := newFixture(is, db)

	now := time.Now().UTC()
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, MeasuredAt: now.Add(-2 * time.Hour), EnergyKWh: 1.5}))
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, MeasuredAt: now, EnergyKWh: 3.0}))
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, MeasuredAt: now.Add(-1 * time.Hour), EnergyKWh: 2.0}))

	measurements, err := r.GetMeasurements(ctx, f.fridge.ID)
	is.NoErr(err)
	is.Equal(3, len(measurements))
	is.Equal(3.0, measurements[0].EnergyKWh)
	is.Equal(1.5, measurements[2].EnergyKWh)

	limited, err := r.GetMeasurements(ctx, f.fridge.ID, WithLimit(1))
	is.NoErr(err)
	is.Equal(1, len(limited))
}

func TestMeasuredAtIsSetOnCreate(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	f := newFixture(is, db)

	measurement := &Measurement{DeviceID: f.fridge.ID, EnergyKWh: 0.4}
	is.NoErr(r.AddMeasurement(ctx, measurement))
	is.True(!measurement.MeasuredAt.IsZero())
}

func TestMeasurementForUnknownDeviceIsRejected(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	newFixture(is, db)

	err := r.AddMeasurement(ctx, &Measurement{DeviceID: 4711, EnergyKWh: 0.4})
	is.True(errors.Is(err, ErrConstraintViolation))
}

func TestGetLatestMeasurements(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	f := newFixture(is, db)

	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, EnergyKWh: 10}))
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, EnergyKWh: 120}))
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.heater.ID, EnergyKWh: 40}))
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.foreign.ID, EnergyKWh: 500}))

	latest, err := r.GetLatestMeasurements(ctx, f.org.ID)
	is.NoErr(err)
	is.Equal(2, len(latest))
	is.Equal(f.fridge.ID, latest[0].DeviceID)
	is.Equal(120.0, latest[0].EnergyKWh)
	is.Equal(40.0, latest[1].EnergyKWh)
}

func TestBackfilledMeasurementIsNotTheLatest(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	f := newFixture(is, db)

	now := time.Now().UTC()
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, MeasuredAt: now, EnergyKWh: 150}))
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, MeasuredAt: now.Add(-24 * time.Hour), EnergyKWh: 5}))

	latest, err := r.GetLatestMeasurements(ctx, f.org.ID)
	is.NoErr(err)
	is.Equal(1, len(latest))
	is.Equal(150.0, latest[0].EnergyKWh)

	measurements, err := r.GetMeasurements(ctx, f.fridge.ID)
	is.NoErr(err)
	is.Equal(latest[0].ID, measurements[0].ID)
}

func TestDeletingRuleNullsTriggeredAlert(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	f := newFixture(is, db)

	measurement := &Measurement{DeviceID: f.fridge.ID, EnergyKWh: 9, TriggeredAlertID: &f.rule.ID}
	is.NoErr(r.AddMeasurement(ctx, measurement))

	is.NoErr(db.Delete(&AlertRule{}, f.rule.ID).Error)

	measurements, err := r.GetMeasurements(ctx, f.fridge.ID)
	is.NoErr(err)
	is.Equal(1, len(measurements))
	is.True(measurements[0].TriggeredAlertID == nil)
}

func TestAlertEventsProtectRuleAndFollowDevice(t *testing.T) {
	is, ctx, r, db := testSetupMeasurementRepository(t)
	f := newFixture(is, db)

	event := &AlertEvent{DeviceID: f.fridge.ID, AlertRuleID: f.rule.ID, Message: "consumption above limit"}
	is.NoErr(r.AddAlertEvent(ctx, event))
	is.Equal("Overconsumption", event.AlertRule.Name)
	is.NoErr(r.AddMeasurement(ctx, &Measurement{DeviceID: f.fridge.ID, EnergyKWh: 9}))

	err := MapError(db.Delete(&AlertRule{}, f.rule.ID).Error)
	is.True(errors.Is(err, ErrProtected))

	events, err := r.GetAlertEvents(ctx, f.fridge.ID)
	is.NoErr(err)
	is.Equal(1, len(events))
	is.Equal(SeverityHigh, events[0].AlertRule.Severity)

	is.NoErr(db.Delete(&Device{}, f.fridge.ID).Error)

	events, err = r.GetAlertEvents(ctx, f.fridge.ID)
	is.NoErr(err)
	is.Equal(0, len(events))

	measurements, err := r.GetMeasurements(ctx, f.fridge.ID)
	is.NoErr(err)
	is.Equal(0, len(measurements))
}

type fixture struct {
	org     Organization
	rule    AlertRule
	fridge  Device
	heater  Device
	foreign Device
}

func newFixture(is *is.I, db *gorm.DB) fixture {
	f := fixture{}

	category := Category{Name: "Appliances"}
	is.NoErr(db.Create(&category).Error)
	product := Product{Name: "Fridge", CategoryID: category.ID, SKU: "FR-100"}
	is.NoErr(db.Omit("Category").Create(&product).Error)

	limit := 100.0
	f.rule = AlertRule{Name: "Overconsumption", Severity: SeverityHigh, DefaultMaxThreshold: &limit}
	is.NoErr(db.Create(&f.rule).Error)

	f.org = Organization{Name: "EcoCorp"}
	is.NoErr(db.Create(&f.org).Error)
	other := Organization{Name: "Other"}
	is.NoErr(db.Create(&other).Error)

	zone := Zone{OrganizationID: f.org.ID, Name: "Kitchen"}
	is.NoErr(db.Omit("Organization").Create(&zone).Error)
	otherZone := Zone{OrganizationID: other.ID, Name: "Lobby"}
	is.NoErr(db.Omit("Organization").Create(&otherZone).Error)

	newDevice := func(orgID, zoneID uint, name string) Device {
		d := Device{OrganizationID: orgID, ZoneID: zoneID, ProductID: product.ID, Name: name, MaxPowerW: 100}
		is.NoErr(db.Omit("Organization", "Zone", "Product").Create(&d).Error)
		return d
	}

	f.fridge = newDevice(f.org.ID, zone.ID, "Fridge")
	f.heater = newDevice(f.org.ID, zone.ID, "Heater")
	f.foreign = newDevice(other.ID, otherZone.ID, "Lobby fridge")

	return f
}

func testSetupMeasurementRepository(t *testing.T) (*is.I, context.Context, MeasurementRepository, *gorm.DB) {
	is := is.New(t)
	ctx := context.Background()

	db, err := Open(NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, NewMeasurementRepository(db), db
}
