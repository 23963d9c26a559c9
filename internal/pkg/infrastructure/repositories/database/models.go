package database

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

const DefaultUnit = "kWh"

// BaseModel carries the audit fields shared by every table. DeletedAt is a
// plain nullable column and is never filtered implicitly, callers have to
// exclude soft deleted rows themselves.
type BaseModel struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	Status    string     `gorm:"size:10;not null;default:ACTIVE;check:status IN ('ACTIVE','INACTIVE')" json:"status"`
	CreatedAt time.Time  `gorm:"autoCreateTime;<-:create" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"deletedAt,omitempty"`
}

func (b *BaseModel) IsDeleted() bool {
	return b.DeletedAt != nil
}

func (b *BaseModel) BeforeSave(tx *gorm.DB) error {
	if b.Status == "" {
		b.Status = StatusActive
	}
	if b.Status != StatusActive && b.Status != StatusInactive {
		return &ConstraintError{Constraint: "status_valid", Kind: ErrCheckViolation}
	}
	return nil
}

type Organization struct {
	BaseModel

	Name string `gorm:"size:100;not null" json:"name"`
}

func (Organization) TableName() string {
	return "organization"
}

type Category struct {
	BaseModel

	Name string `gorm:"size:120;not null;uniqueIndex" json:"name"`
}

func (Category) TableName() string {
	return "category"
}

type Product struct {
	BaseModel

	Name       string   `gorm:"size:160;not null;index" json:"name"`
	CategoryID uint     `gorm:"not null;index" json:"categoryID"`
	Category   Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	SKU        string   `gorm:"column:sku;size:80;not null;uniqueIndex" json:"sku"`

	Manufacturer string `gorm:"size:120" json:"manufacturer"`
	ModelName    string `gorm:"size:120" json:"modelName"`
	Description  string `json:"description"`

	NominalVoltageV *float64 `gorm:"column:nominal_voltage_v" json:"nominalVoltageV,omitempty"`
	MaxCurrentA     *float64 `gorm:"column:max_current_a" json:"maxCurrentA,omitempty"`
	StandbyPowerW   *float64 `gorm:"column:standby_power_w" json:"standbyPowerW,omitempty"`
}

func (Product) TableName() string {
	return "product"
}

type AlertRule struct {
	BaseModel

	Name     string `gorm:"size:140;not null;index;uniqueIndex:ux_alert_rule_name_severity,priority:1" json:"name"`
	Severity string `gorm:"size:10;not null;default:MEDIUM;index;uniqueIndex:ux_alert_rule_name_severity,priority:2;check:severity IN ('CRITICAL','HIGH','MEDIUM','LOW')" json:"severity"`
	Unit     string `gorm:"size:32;not null;default:kWh" json:"unit"`

	DefaultMinThreshold *float64 `json:"defaultMinThreshold,omitempty"`
	DefaultMaxThreshold *float64 `gorm:"check:alert_rule_default_min_lte_max,default_min_threshold IS NULL OR default_max_threshold IS NULL OR default_min_threshold <= default_max_threshold" json:"defaultMaxThreshold,omitempty"`
}

func (AlertRule) TableName() string {
	return "alert_rule"
}

func (r *AlertRule) BeforeSave(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeSave(tx); err != nil {
		return err
	}
	if r.Unit == "" {
		r.Unit = DefaultUnit
	}
	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	if !ValidSeverity(r.Severity) {
		return &ConstraintError{Constraint: "alert_rule_severity_valid", Kind: ErrCheckViolation}
	}
	if r.DefaultMinThreshold != nil && r.DefaultMaxThreshold != nil && *r.DefaultMinThreshold > *r.DefaultMaxThreshold {
		return &ConstraintError{Constraint: "alert_rule_default_min_lte_max", Kind: ErrCheckViolation}
	}
	return nil
}

func ValidSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ProductAlertRule links a product to an alert rule and optionally overrides
// the thresholds and unit of the rule for that product.
type ProductAlertRule struct {
	BaseModel

	ProductID   uint      `gorm:"not null;index;uniqueIndex:uix_product_alert_unique,priority:1" json:"productID"`
	Product     Product   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AlertRuleID uint      `gorm:"not null;index;uniqueIndex:uix_product_alert_unique,priority:2" json:"alertRuleID"`
	AlertRule   AlertRule `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	MinThreshold *float64 `json:"minThreshold,omitempty"`
	MaxThreshold *float64 `gorm:"check:par_min_lte_max,min_threshold IS NULL OR max_threshold IS NULL OR min_threshold <= max_threshold" json:"maxThreshold,omitempty"`
	UnitOverride *string  `gorm:"size:32" json:"unitOverride,omitempty"`
}

func (ProductAlertRule) TableName() string {
	return "product_alert_rule"
}

func (l *ProductAlertRule) BeforeSave(tx *gorm.DB) error {
	if err := l.BaseModel.BeforeSave(tx); err != nil {
		return err
	}
	if l.MinThreshold != nil && l.MaxThreshold != nil && *l.MinThreshold > *l.MaxThreshold {
		return &ConstraintError{Constraint: "par_min_lte_max", Kind: ErrCheckViolation}
	}
	return nil
}

// HasOverride reports whether both override thresholds are set. A link with
// only one of them set does not override anything.
func (l ProductAlertRule) HasOverride() bool {
	return l.MinThreshold != nil && l.MaxThreshold != nil
}

type Zone struct {
	BaseModel

	OrganizationID uint         `gorm:"not null;uniqueIndex:ux_zone_organization_name,priority:1" json:"organizationID"`
	Organization   Organization `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"organization"`
	Name           string       `gorm:"size:120;not null;uniqueIndex:ux_zone_organization_name,priority:2" json:"name"`
}

func (Zone) TableName() string {
	return "zone"
}

// Device belongs to an organization and sits in a zone. Nothing in the schema
// requires the zone to belong to the same organization as the device.
type Device struct {
	BaseModel

	OrganizationID uint         `gorm:"not null;uniqueIndex:ux_device_organization_name,priority:1" json:"organizationID"`
	Organization   Organization `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"organization"`
	ZoneID         uint         `gorm:"not null;index" json:"zoneID"`
	Zone           Zone         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"zone"`
	ProductID      uint         `gorm:"not null;index" json:"productID"`
	Product        Product      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"product"`

	Name         string `gorm:"size:160;not null;uniqueIndex:ux_device_organization_name,priority:2" json:"name"`
	MaxPowerW    uint   `gorm:"column:max_power_w;not null" json:"maxPowerW"`
	Image        string `gorm:"size:255" json:"image,omitempty"`
	SerialNumber string `gorm:"size:120" json:"serialNumber,omitempty"`
}

func (Device) TableName() string {
	return "device"
}

type Measurement struct {
	BaseModel

	DeviceID   uint      `gorm:"not null;index:idx_measurement_device_measured_at,priority:1" json:"deviceID"`
	Device     Device    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	MeasuredAt time.Time `gorm:"autoCreateTime;<-:create;index:idx_measurement_device_measured_at,priority:2" json:"measuredAt"`
	EnergyKWh  float64   `gorm:"column:energy_kwh;not null" json:"energyKWh"`

	TriggeredAlertID *uint     `gorm:"index" json:"triggeredAlertID,omitempty"`
	TriggeredAlert   AlertRule `gorm:"foreignKey:TriggeredAlertID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
}

func (Measurement) TableName() string {
	return "measurement"
}

type AlertEvent struct {
	BaseModel

	DeviceID    uint      `gorm:"not null;index:idx_alert_event_device_occurred_at,priority:1" json:"deviceID"`
	Device      Device    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AlertRuleID uint      `gorm:"not null;index" json:"alertRuleID"`
	AlertRule   AlertRule `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"alertRule"`
	OccurredAt  time.Time `gorm:"autoCreateTime;<-:create;index:idx_alert_event_device_occurred_at,priority:2" json:"occurredAt"`
	Message     string    `gorm:"size:240" json:"message"`
}

func (AlertEvent) TableName() string {
	return "alert_event"
}
