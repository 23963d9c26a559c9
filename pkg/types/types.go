package types

import (
	"time"
)

type Category struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name" yaml:"name" validate:"required,max=120"`
	Status    string     `json:"status,omitempty" yaml:"status" validate:"omitempty,status"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type Product struct {
	ID         uint   `json:"id"`
	Name       string `json:"name" yaml:"name" validate:"required,max=160"`
	CategoryID uint   `json:"categoryID" validate:"required"`
	Category   string `json:"category,omitempty" yaml:"category"`
	SKU        string `json:"sku" yaml:"sku" validate:"required,max=80"`

	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer" validate:"max=120"`
	ModelName    string `json:"modelName,omitempty" yaml:"modelName" validate:"max=120"`
	Description  string `json:"description,omitempty" yaml:"description"`

	NominalVoltageV *float64 `json:"nominalVoltageV,omitempty" yaml:"nominalVoltageV" validate:"omitempty,gte=0"`
	MaxCurrentA     *float64 `json:"maxCurrentA,omitempty" yaml:"maxCurrentA" validate:"omitempty,gte=0"`
	StandbyPowerW   *float64 `json:"standbyPowerW,omitempty" yaml:"standbyPowerW" validate:"omitempty,gte=0"`

	Status    string     `json:"status,omitempty" yaml:"status" validate:"omitempty,status"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type AlertRule struct {
	ID       uint   `json:"id"`
	Name     string `json:"name" yaml:"name" validate:"required,max=140"`
	Severity string `json:"severity,omitempty" yaml:"severity" validate:"omitempty,severity"`
	Unit     string `json:"unit,omitempty" yaml:"unit" validate:"max=32"`

	DefaultMinThreshold *float64 `json:"defaultMinThreshold,omitempty" yaml:"defaultMin"`
	DefaultMaxThreshold *float64 `json:"defaultMaxThreshold,omitempty" yaml:"defaultMax"`

	Status    string     `json:"status,omitempty" yaml:"status" validate:"omitempty,status"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// ProductAlertRule links a product to an alert rule. Override thresholds are
// only used when both of them are set.
type ProductAlertRule struct {
	ProductID    uint     `json:"productID"`
	AlertRuleID  uint     `json:"alertRuleID"`
	AlertRule    string   `json:"alertRule,omitempty"`
	MinThreshold *float64 `json:"minThreshold,omitempty" yaml:"min"`
	MaxThreshold *float64 `json:"maxThreshold,omitempty" yaml:"max"`
	UnitOverride *string  `json:"unitOverride,omitempty" yaml:"unit" validate:"omitempty,max=32"`

	Status    string    `json:"status,omitempty" validate:"omitempty,status"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Thresholds is the effective (min, max) pair of an alert rule for a product.
type Thresholds struct {
	ProductID   uint     `json:"productID"`
	AlertRuleID uint     `json:"alertRuleID"`
	AlertRule   string   `json:"alertRule"`
	Severity    string   `json:"severity"`
	Unit        string   `json:"unit"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
}

type Organization struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name" validate:"required,max=100"`
	Status    string     `json:"status,omitempty" validate:"omitempty,status"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type Zone struct {
	ID             uint       `json:"id"`
	OrganizationID uint       `json:"organizationID"`
	Name           string     `json:"name" validate:"required,max=120"`
	Status         string     `json:"status,omitempty" validate:"omitempty,status"`
	CreatedAt      time.Time  `json:"createdAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt,omitempty"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

type Device struct {
	ID             uint   `json:"id"`
	OrganizationID uint   `json:"organizationID"`
	Organization   string `json:"organization,omitempty"`
	ZoneID         uint   `json:"zoneID" validate:"required"`
	Zone           string `json:"zone,omitempty"`
	ProductID      uint   `json:"productID" validate:"required"`
	Product        string `json:"product,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Category       string `json:"category,omitempty"`

	Name         string `json:"name" validate:"required,min=3,max=160"`
	MaxPowerW    uint   `json:"maxPowerW"`
	Image        string `json:"image,omitempty" validate:"max=255"`
	SerialNumber string `json:"serialNumber,omitempty" validate:"max=120"`

	Status    string     `json:"status,omitempty" validate:"omitempty,status"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type Measurement struct {
	ID               uint      `json:"id"`
	DeviceID         uint      `json:"deviceID"`
	MeasuredAt       time.Time `json:"measuredAt,omitempty"`
	EnergyKWh        float64   `json:"energyKWh" validate:"gte=0"`
	TriggeredAlertID *uint     `json:"triggeredAlertID,omitempty"`
}

type AlertEvent struct {
	ID          uint      `json:"id"`
	DeviceID    uint      `json:"deviceID"`
	AlertRuleID uint      `json:"alertRuleID" validate:"required"`
	AlertRule   string    `json:"alertRule,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	OccurredAt  time.Time `json:"occurredAt,omitempty"`
	Message     string    `json:"message" validate:"max=240"`
}

// Panel summarizes the latest consumption of every device in an organization.
type Panel struct {
	OrganizationID uint          `json:"organizationID"`
	CriticalLimit  float64       `json:"criticalLimit"`
	CriticalCount  int           `json:"criticalCount"`
	Devices        []PanelDevice `json:"devices"`
}

type PanelDevice struct {
	DeviceID   uint       `json:"deviceID"`
	Name       string     `json:"name"`
	Zone       string     `json:"zone"`
	Category   string     `json:"category"`
	LatestKWh  *float64   `json:"latestKWh,omitempty"`
	MeasuredAt *time.Time `json:"measuredAt,omitempty"`
	Critical   bool       `json:"critical"`
}

type Collection[T any] struct {
	Data   []T    `json:"data"`
	Count  uint64 `json:"count"`
	Offset uint64 `json:"offset,omitempty"`
	Limit  uint64 `json:"limit,omitempty"`
}

func NewCollection[T any](data []T, offset, limit int) Collection[T] {
	if data == nil {
		data = []T{}
	}
	return Collection[T]{
		Data:   data,
		Count:  uint64(len(data)),
		Offset: uint64(max(offset, 0)),
		Limit:  uint64(max(limit, 0)),
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is returned by the api for every failed request.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}
