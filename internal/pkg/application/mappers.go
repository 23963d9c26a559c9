package application

import (
	"github.com/samber/lo"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

func MapCategory(c database.Category) types.Category {
	return types.Category{
		ID:        c.ID,
		Name:      c.Name,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		DeletedAt: c.DeletedAt,
	}
}

func MapProduct(p database.Product) types.Product {
	return types.Product{
		ID:              p.ID,
		Name:            p.Name,
		CategoryID:      p.CategoryID,
		Category:        p.Category.Name,
		SKU:             p.SKU,
		Manufacturer:    p.Manufacturer,
		ModelName:       p.ModelName,
		Description:     p.Description,
		NominalVoltageV: p.NominalVoltageV,
		MaxCurrentA:     p.MaxCurrentA,
		StandbyPowerW:   p.StandbyPowerW,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		DeletedAt:       p.DeletedAt,
	}
}

func MapAlertRule(r database.AlertRule) types.AlertRule {
	return types.AlertRule{
		ID:                  r.ID,
		Name:                r.Name,
		Severity:            r.Severity,
		Unit:                r.Unit,
		DefaultMinThreshold: r.DefaultMinThreshold,
		DefaultMaxThreshold: r.DefaultMaxThreshold,
		Status:              r.Status,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
		DeletedAt:           r.DeletedAt,
	}
}

func MapProductAlertRule(l database.ProductAlertRule) types.ProductAlertRule {
	return types.ProductAlertRule{
		ProductID:    l.ProductID,
		AlertRuleID:  l.AlertRuleID,
		AlertRule:    l.AlertRule.Name,
		MinThreshold: l.MinThreshold,
		MaxThreshold: l.MaxThreshold,
		UnitOverride: l.UnitOverride,
		Status:       l.Status,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func MapOrganization(o database.Organization) types.Organization {
	return types.Organization{
		ID:        o.ID,
		Name:      o.Name,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		DeletedAt: o.DeletedAt,
	}
}

func MapZone(z database.Zone) types.Zone {
	return types.Zone{
		ID:             z.ID,
		OrganizationID: z.OrganizationID,
		Name:           z.Name,
		Status:         z.Status,
		CreatedAt:      z.CreatedAt,
		UpdatedAt:      z.UpdatedAt,
		DeletedAt:      z.DeletedAt,
	}
}

func MapDevice(d database.Device) types.Device {
	return types.Device{
		ID:             d.ID,
		OrganizationID: d.OrganizationID,
		Organization:   d.Organization.Name,
		ZoneID:         d.ZoneID,
		Zone:           d.Zone.Name,
		ProductID:      d.ProductID,
		Product:        d.Product.Name,
		SKU:            d.Product.SKU,
		Category:       d.Product.Category.Name,
		Name:           d.Name,
		MaxPowerW:      d.MaxPowerW,
		Image:          d.Image,
		SerialNumber:   d.SerialNumber,
		Status:         d.Status,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		DeletedAt:      d.DeletedAt,
	}
}

func MapMeasurement(m database.Measurement) types.Measurement {
	return types.Measurement{
		ID:               m.ID,
		DeviceID:         m.DeviceID,
		MeasuredAt:       m.MeasuredAt,
		EnergyKWh:        m.EnergyKWh,
		TriggeredAlertID: m.TriggeredAlertID,
	}
}

func MapAlertEvent(e database.AlertEvent) types.AlertEvent {
	return types.AlertEvent{
		ID:          e.ID,
		DeviceID:    e.DeviceID,
		AlertRuleID: e.AlertRuleID,
		AlertRule:   e.AlertRule.Name,
		Severity:    e.AlertRule.Severity,
		OccurredAt:  e.OccurredAt,
		Message:     e.Message,
	}
}

// MapAll maps every item of a listing with fn.
func MapAll[T any, R any](items []T, fn func(T) R) []R {
	return lo.Map(items, func(item T, _ int) R {
		return fn(item)
	})
}
