package devicemanagement

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	. "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
)

// Seed creates the organizations, zones and devices listed in a semicolon
// separated file. Products are referenced by SKU and must already exist.
// Devices that already exist are left untouched.
func (d *deviceRepository) Seed(ctx context.Context, reader io.Reader) error {
	r := csv.NewReader(reader)
	r.Comma = ';'

	rows, err := r.ReadAll()
	if err != nil {
		return err
	}

	records, err := getRecordsFromRows(rows)
	if err != nil {
		return err
	}

	log := logging.GetFromContext(ctx)
	log.Info().Int("count", len(records)).Msg("loaded devices from file")

	for _, record := range records {
		err := d.seedRecord(ctx, record)
		if err != nil {
			log.Error().Err(err).Str("device", record.name).Str("organization", record.organization).Msg("could not seed device")
			return err
		}
	}

	return nil
}

func (d *deviceRepository) seedRecord(ctx context.Context, record deviceRecord) error {
	organization, err := d.GetOrganizationByName(ctx, record.organization)
	if errors.Is(err, ErrNotFound) {
		organization = Organization{Name: record.organization}
		err = d.AddOrganization(ctx, &organization)
	}
	if err != nil {
		return err
	}

	zone, err := d.GetZoneByName(ctx, organization.ID, record.zone)
	if errors.Is(err, ErrNotFound) {
		zone = Zone{OrganizationID: organization.ID, Name: record.zone}
		err = d.AddZone(ctx, &zone)
	}
	if err != nil {
		return err
	}

	product := Product{}
	err = d.db.WithContext(ctx).Where("sku = ?", record.sku).First(&product).Error
	if err != nil {
		return fmt.Errorf("unknown sku %s: %w", record.sku, MapError(err))
	}

	_, err = d.GetDeviceByName(ctx, organization.ID, record.name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	device := record.Device(organization.ID, zone.ID, product.ID)
	return d.AddDevice(ctx, &device)
}

type deviceRecord struct {
	organization string
	zone         string
	name         string
	sku          string
	maxPowerW    uint
	serialNumber string
	status       string
}

func (dr deviceRecord) Device(organizationID, zoneID, productID uint) Device {
	device := Device{
		OrganizationID: organizationID,
		ZoneID:         zoneID,
		ProductID:      productID,
		Name:           dr.name,
		MaxPowerW:      dr.maxPowerW,
		SerialNumber:   dr.serialNumber,
	}
	device.Status = dr.status
	return device
}

func newDeviceRecord(r []string) (deviceRecord, error) {
	if len(r) < 5 {
		return deviceRecord{}, fmt.Errorf("row contains %d columns, expected at least 5", len(r))
	}

	column := func(i int) string {
		if i < len(r) {
			return strings.TrimSpace(r[i])
		}
		return ""
	}

	maxPower, err := strconv.ParseUint(column(4), 10, 32)
	if err != nil {
		return deviceRecord{}, fmt.Errorf("row with %s contains invalid max power %s", column(2), column(4))
	}

	dr := deviceRecord{
		organization: column(0),
		zone:         column(1),
		name:         column(2),
		sku:          column(3),
		maxPowerW:    uint(maxPower),
		serialNumber: column(5),
		status:       strings.ToUpper(column(6)),
	}

	err = validateDeviceRecord(dr)
	if err != nil {
		return deviceRecord{}, err
	}

	return dr, nil
}

func validateDeviceRecord(r deviceRecord) error {
	if r.organization == "" || r.zone == "" || r.sku == "" {
		return fmt.Errorf("row with %s is missing organization, zone or sku", r.name)
	}

	if len([]rune(r.name)) < 3 {
		return fmt.Errorf("device name %q is shorter than 3 characters", r.name)
	}

	if r.status != "" && r.status != StatusActive && r.status != StatusInactive {
		return fmt.Errorf("row with %s contains invalid status %s", r.name, r.status)
	}

	return nil
}

func getRecordsFromRows(rows [][]string) ([]deviceRecord, error) {
	records := []deviceRecord{}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec, err := newDeviceRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}
