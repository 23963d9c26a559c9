package devicemanagement

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/matryer/is"
	"gorm.io/gorm"
)

func TestGetDevicesLoadsRelationsAndFiltersByOrganization(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	product := addProduct(is, db, "FR-100")

	org := addOrganization(is, ctx, r, "EcoCorp")
	other := addOrganization(is, ctx, r, "Other")
	kitchen := addZone(is, ctx, r, org.ID, "Kitchen")
	lobby := addZone(is, ctx, r, other.ID, "Lobby")

	is.NoErr(r.AddDevice(ctx, &Device{OrganizationID: org.ID, ZoneID: kitchen.ID, ProductID: product.ID, Name: "Fridge 2", MaxPowerW: 150}))
	is.NoErr(r.AddDevice(ctx, &Device{OrganizationID: org.ID, ZoneID: kitchen.ID, ProductID: product.ID, Name: "Fridge 1", MaxPowerW: 120}))
	is.NoErr(r.AddDevice(ctx, &Device{OrganizationID: other.ID, ZoneID: lobby.ID, ProductID: product.ID, Name: "Lobby fridge", MaxPowerW: 90}))

	devices, err := r.GetDevices(ctx, org.ID)
	is.NoErr(err)
	is.Equal(2, len(devices))
	is.Equal("Fridge 1", devices[0].Name)
	is.Equal("EcoCorp", devices[0].Organization.Name)
	is.Equal("Kitchen", devices[0].Zone.Name)
	is.Equal("FR-100", devices[0].Product.SKU)
	is.Equal("Refrigeration", devices[0].Product.Category.Name)
}

func TestGetDevicesWithoutDeleted(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	product := addProduct(is, db, "FR-100")

	org := addOrganization(is, ctx, r, "EcoCorp")
	zone := addZone(is, ctx, r, org.ID, "Kitchen")

	gone := &Device{OrganizationID: org.ID, ZoneID: zone.ID, ProductID: product.ID, Name: "Old fridge", MaxPowerW: 100}
	is.NoErr(r.AddDevice(ctx, gone))
	is.NoErr(r.AddDevice(ctx, &Device{OrganizationID: org.ID, ZoneID: zone.ID, ProductID: product.ID, Name: "New fridge", MaxPowerW: 100}))

	is.NoErr(r.SoftDelete(ctx, &Device{}, gone.ID))

	all, err := r.GetDevices(ctx, org.ID)
	is.NoErr(err)
	is.Equal(2, len(all))

	visible, err := r.GetDevices(ctx, org.ID, WithoutDeleted())
	is.NoErr(err)
	is.Equal(1, len(visible))
	is.Equal("New fridge", visible[0].Name)
}

func TestDeviceNameIsUniqueWithinOrganization(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	product := addProduct(is, db, "FR-100")

	first := addOrganization(is, ctx, r, "First")
	second := addOrganization(is, ctx, r, "Second")
	z1 := addZone(is, ctx, r, first.ID, "Kitchen")
	z2 := addZone(is, ctx, r, second.ID, "Kitchen")

	is.NoErr(r.AddDevice(ctx, &Device{OrganizationID: first.ID, ZoneID: z1.ID, ProductID: product.ID, Name: "Fridge", MaxPowerW: 1}))
	is.NoErr(r.AddDevice(ctx, &Device{OrganizationID: second.ID, ZoneID: z2.ID, ProductID: product.ID, Name: "Fridge", MaxPowerW: 1}))

	err := r.AddDevice(ctx, &Device{OrganizationID: first.ID, ZoneID: z1.ID, ProductID: product.ID, Name: "Fridge", MaxPowerW: 1})
	is.True(errors.Is(err, ErrUniqueViolation))
}

func TestZoneNameIsUniqueWithinOrganization(t *testing.T) {
	is, ctx, r, _ := testSetupDeviceRepository(t)

	first := addOrganization(is, ctx, r, "First")
	second := addOrganization(is, ctx, r, "Second")

	addZone(is, ctx, r, first.ID, "Kitchen")
	addZone(is, ctx, r, second.ID, "Kitchen")

	err := r.AddZone(ctx, &Zone{OrganizationID: first.ID, Name: "Kitchen"})
	is.True(errors.Is(err, ErrUniqueViolation))

	zones, err := r.GetZones(ctx, first.ID)
	is.NoErr(err)
	is.Equal(1, len(zones))
}

func TestDeviceWithZoneFromOtherOrganizationIsAccepted(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	product := addProduct(is, db, "FR-100")

	first := addOrganization(is, ctx, r, "First")
	second := addOrganization(is, ctx, r, "Second")
	foreignZone := addZone(is, ctx, r, second.ID, "Lobby")

	device := &Device{OrganizationID: first.ID, ZoneID: foreignZone.ID, ProductID: product.ID, Name: "Stray", MaxPowerW: 10}
	is.NoErr(r.AddDevice(ctx, device))

	fromDb, err := r.GetDevice(ctx, device.ID)
	is.NoErr(err)
	is.Equal(first.ID, fromDb.OrganizationID)
	is.Equal(second.ID, fromDb.Zone.OrganizationID)
}

func TestDeletesReferencedByDevicesAreProtected(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	product := addProduct(is, db, "FR-100")

	org := addOrganization(is, ctx, r, "EcoCorp")
	zone := addZone(is, ctx, r, org.ID, "Kitchen")
	device := &Device{OrganizationID: org.ID, ZoneID: zone.ID, ProductID: product.ID, Name: "Fridge", MaxPowerW: 1}
	is.NoErr(r.AddDevice(ctx, device))

	is.True(errors.Is(r.DeleteOrganization(ctx, org.ID), ErrProtected))
	is.True(errors.Is(r.DeleteZone(ctx, zone.ID), ErrProtected))
	is.True(errors.Is(MapError(db.Delete(&Product{}, product.ID).Error), ErrProtected))

	is.NoErr(r.DeleteDevice(ctx, device.ID))
	is.NoErr(r.DeleteZone(ctx, zone.ID))
	is.NoErr(r.DeleteOrganization(ctx, org.ID))

	_, err := r.GetOrganization(ctx, org.ID)
	is.True(errors.Is(err, ErrNotFound))
}

const devicesCsv string = `organization;zone;name;sku;maxPowerW;serialNumber;status
EcoCorp;Kitchen;Fridge 1;FR-100;150;SN-1;active
EcoCorp;Kitchen;Fridge 2;FR-100;150;SN-2;
EcoCorp;Office;Heater;FR-100;2000;;inactive
Other;Lobby;Fridge 1;FR-100;90;;ACTIVE`

func TestSeed(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	addProduct(is, db, "FR-100")

	is.NoErr(r.Seed(ctx, bytes.NewBufferString(devicesCsv)))
	is.NoErr(r.Seed(ctx, bytes.NewBufferString(devicesCsv)))

	organizations, err := r.GetOrganizations(ctx)
	is.NoErr(err)
	is.Equal(2, len(organizations))

	org, err := r.GetOrganizationByName(ctx, "EcoCorp")
	is.NoErr(err)

	zones, err := r.GetZones(ctx, org.ID)
	is.NoErr(err)
	is.Equal(2, len(zones))

	devices, err := r.GetDevices(ctx, org.ID)
	is.NoErr(err)
	is.Equal(3, len(devices))

	heater, err := r.GetDeviceByName(ctx, org.ID, "Heater")
	is.NoErr(err)
	is.Equal(StatusInactive, heater.Status)
	is.Equal(uint(2000), heater.MaxPowerW)
	is.Equal("Office", heater.Zone.Name)
}

func TestSeedWithUnknownSKUFails(t *testing.T) {
	is, ctx, r, _ := testSetupDeviceRepository(t)

	err := r.Seed(ctx, bytes.NewBufferString(devicesCsv))
	is.True(errors.Is(err, ErrNotFound))
}

func TestSeedWithShortNameFails(t *testing.T) {
	is, ctx, r, db := testSetupDeviceRepository(t)
	addProduct(is, db, "FR-100")

	csv := "organization;zone;name;sku;maxPowerW;serialNumber;status\nEcoCorp;Kitchen;F1;FR-100;150;;"
	err := r.Seed(ctx, bytes.NewBufferString(csv))
	is.True(err != nil)

	organizations, err := r.GetOrganizations(ctx)
	is.NoErr(err)
	is.Equal(0, len(organizations))
}

func testSetupDeviceRepository(t *testing.T) (*is.I, context.Context, DeviceRepository, *gorm.DB) {
	is := is.New(t)
	ctx := context.Background()

	db, err := Open(NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, NewDeviceRepository(db), db
}

func addProduct(is *is.I, db *gorm.DB, sku string) *Product {
	category := &Category{Name: "Refrigeration"}
	is.NoErr(db.Create(category).Error)

	product := &Product{Name: "Fridge", CategoryID: category.ID, SKU: sku}
	is.NoErr(db.Omit("Category").Create(product).Error)

	return product
}

func addOrganization(is *is.I, ctx context.Context, r DeviceRepository, name string) *Organization {
	organization := &Organization{Name: name}
	is.NoErr(r.AddOrganization(ctx, organization))
	return organization
}

func addZone(is *is.I, ctx context.Context, r DeviceRepository, organizationID uint, name string) *Zone {
	zone := &Zone{OrganizationID: organizationID, Name: name}
	is.NoErr(r.AddZone(ctx, zone))
	return zone
}
