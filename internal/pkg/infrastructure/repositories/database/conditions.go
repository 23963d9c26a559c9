package database

import (
	"fmt"

	"gorm.io/gorm"
)

type ConditionFunc func(*Condition) *Condition

// Condition narrows a listing query. Soft deleted rows are included unless
// ExcludeDeleted is set.
type Condition struct {
	ExcludeDeleted bool
	Status         string

	offset *int
	limit  *int
}

func NewCondition(conditions ...ConditionFunc) *Condition {
	c := &Condition{}
	for _, fn := range conditions {
		c = fn(c)
	}
	return c
}

func WithoutDeleted() ConditionFunc {
	return func(c *Condition) *Condition {
		c.ExcludeDeleted = true
		return c
	}
}

func WithStatus(status string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Status = status
		return c
	}
}

func WithOffset(offset int) ConditionFunc {
	return func(c *Condition) *Condition {
		if offset > 0 {
			c.offset = &offset
		}
		return c
	}
}

func WithLimit(limit int) ConditionFunc {
	return func(c *Condition) *Condition {
		if limit > 0 {
			c.limit = &limit
		}
		return c
	}
}

// Apply adds the condition to a query against table.
func (c *Condition) Apply(query *gorm.DB, table string) *gorm.DB {
	if c.ExcludeDeleted {
		query = query.Where(fmt.Sprintf("%s.deleted_at IS NULL", table))
	}
	if c.Status != "" {
		query = query.Where(fmt.Sprintf("%s.status = ?", table), c.Status)
	}
	if c.offset != nil {
		query = query.Offset(*c.offset)
	}
	if c.limit != nil {
		query = query.Limit(*c.limit)
	}
	return query
}
