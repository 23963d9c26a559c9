package application

import (
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
)

// ListOptions narrows the listings returned by the services.
type ListOptions struct {
	IncludeDeleted bool
	Status         string
	Offset         int
	Limit          int
}

func (o ListOptions) Conditions() []database.ConditionFunc {
	conditions := []database.ConditionFunc{
		database.WithOffset(o.Offset),
		database.WithLimit(o.Limit),
	}

	if !o.IncludeDeleted {
		conditions = append(conditions, database.WithoutDeleted())
	}
	if o.Status != "" {
		conditions = append(conditions, database.WithStatus(o.Status))
	}

	return conditions
}
