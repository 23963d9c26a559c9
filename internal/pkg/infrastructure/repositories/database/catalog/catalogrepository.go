package catalog

import (
	"context"
	"errors"

	. "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate moq -rm -out catalogrepository_mock.go . CatalogRepository

// CatalogRepository stores the global master data shared by all
// organizations: categories, products, alert rules and the links between
// products and alert rules.
type CatalogRepository interface {
	AddCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, categoryID uint) (Category, error)
	GetCategories(ctx context.Context, conditions ...ConditionFunc) ([]Category, error)
	DeleteCategory(ctx context.Context, categoryID uint) error

	AddProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, productID uint) (Product, error)
	GetProductBySKU(ctx context.Context, sku string) (Product, error)
	GetProducts(ctx context.Context, conditions ...ConditionFunc) ([]Product, error)
	DeleteProduct(ctx context.Context, productID uint) error

	AddAlertRule(ctx context.Context, rule *AlertRule) error
	GetAlertRule(ctx context.Context, alertRuleID uint) (AlertRule, error)
	GetAlertRuleByName(ctx context.Context, name, severity string) (AlertRule, error)
	GetAlertRules(ctx context.Context, conditions ...ConditionFunc) ([]AlertRule, error)
	DeleteAlertRule(ctx context.Context, alertRuleID uint) error

	AddProductAlertRule(ctx context.Context, link *ProductAlertRule) error
	UpdateProductAlertRule(ctx context.Context, link *ProductAlertRule) error
	FindProductAlertRule(ctx context.Context, productID, alertRuleID uint) (ProductAlertRule, error)
	GetProductAlertRules(ctx context.Context, productID uint) ([]ProductAlertRule, error)
	DeleteProductAlertRule(ctx context.Context, productID, alertRuleID uint) error

	SoftDelete(ctx context.Context, model any, id uint) error
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{
		db: db,
	}
}

func (r *catalogRepository) AddCategory(ctx context.Context, category *Category) error {
	return r.create(ctx, category)
}

func (r *catalogRepository) GetCategory(ctx context.Context, categoryID uint) (Category, error) {
	category := Category{}
	err := r.db.WithContext(ctx).First(&category, categoryID).Error
	if err != nil {
		return Category{}, MapError(err)
	}
	return category, nil
}

func (r *catalogRepository) GetCategories(ctx context.Context, conditions ...ConditionFunc) ([]Category, error) {
	categories := []Category{}

	query := NewCondition(conditions...).Apply(r.db.WithContext(ctx), "category")
	err := query.Order("category.name ASC").Find(&categories).Error
	if err != nil {
		return nil, MapError(err)
	}

	return categories, nil
}

func (r *catalogRepository) DeleteCategory(ctx context.Context, categoryID uint) error {
	return r.delete(ctx, &Category{}, categoryID)
}

func (r *catalogRepository) AddProduct(ctx context.Context, product *Product) error {
	err := r.create(ctx, product)
	if err != nil {
		return err
	}

	return MapError(r.db.WithContext(ctx).First(&product.Category, product.CategoryID).Error)
}

func (r *catalogRepository) GetProduct(ctx context.Context, productID uint) (Product, error) {
	product := Product{}
	err := r.db.WithContext(ctx).Joins("Category").First(&product, "product.id = ?", productID).Error
	if err != nil {
		return Product{}, MapError(err)
	}
	return product, nil
}

func (r *catalogRepository) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	product := Product{}
	err := r.db.WithContext(ctx).Joins("Category").First(&product, "product.sku = ?", sku).Error
	if err != nil {
		return Product{}, MapError(err)
	}
	return product, nil
}

func (r *catalogRepository) GetProducts(ctx context.Context, conditions ...ConditionFunc) ([]Product, error) {
	products := []Product{}

	query := NewCondition(conditions...).Apply(r.db.WithContext(ctx).Joins("Category"), "product")
	err := query.Order("product.name ASC").Find(&products).Error
	if err != nil {
		return nil, MapError(err)
	}

	return products, nil
}

func (r *catalogRepository) DeleteProduct(ctx context.Context, productID uint) error {
	return r.delete(ctx, &Product{}, productID)
}

func (r *catalogRepository) AddAlertRule(ctx context.Context, rule *AlertRule) error {
	return r.create(ctx, rule)
}

func (r *catalogRepository) GetAlertRule(ctx context.Context, alertRuleID uint) (AlertRule, error) {
	rule := AlertRule{}
	err := r.db.WithContext(ctx).First(&rule, alertRuleID).Error
	if err != nil {
		return AlertRule{}, MapError(err)
	}
	return rule, nil
}

func (r *catalogRepository) GetAlertRuleByName(ctx context.Context, name, severity string) (AlertRule, error) {
	rule := AlertRule{}
	err := r.db.WithContext(ctx).
		Where(&AlertRule{Name: name, Severity: severity}).
		First(&rule).Error
	if err != nil {
		return AlertRule{}, MapError(err)
	}
	return rule, nil
}

func (r *catalogRepository) GetAlertRules(ctx context.Context, conditions ...ConditionFunc) ([]AlertRule, error) {
	rules := []AlertRule{}

	query := NewCondition(conditions...).Apply(r.db.WithContext(ctx), "alert_rule")
	err := query.Order("alert_rule.name ASC").Find(&rules).Error
	if err != nil {
		return nil, MapError(err)
	}

	return rules, nil
}

func (r *catalogRepository) DeleteAlertRule(ctx context.Context, alertRuleID uint) error {
	return r.delete(ctx, &AlertRule{}, alertRuleID)
}

func (r *catalogRepository) AddProductAlertRule(ctx context.Context, link *ProductAlertRule) error {
	return r.create(ctx, link)
}

func (r *catalogRepository) UpdateProductAlertRule(ctx context.Context, link *ProductAlertRule) error {
	logger := logging.GetFromContext(ctx)

	existing, err := r.FindProductAlertRule(ctx, link.ProductID, link.AlertRuleID)
	if err != nil {
		return err
	}

	link.ID = existing.ID
	link.CreatedAt = existing.CreatedAt

	err = r.db.WithContext(ctx).
		Omit(clause.Associations).
		Select("status", "min_threshold", "max_threshold", "unit_override", "updated_at").
		Save(link).Error
	if err != nil {
		logger.Debug().Err(err).Msg("could not update product alert rule")
		return MapError(err)
	}

	return nil
}

func (r *catalogRepository) FindProductAlertRule(ctx context.Context, productID, alertRuleID uint) (ProductAlertRule, error) {
	link := ProductAlertRule{}
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND alert_rule_id = ?", productID, alertRuleID).
		First(&link).Error
	if err != nil {
		return ProductAlertRule{}, MapError(err)
	}
	return link, nil
}

func (r *catalogRepository) GetProductAlertRules(ctx context.Context, productID uint) ([]ProductAlertRule, error) {
	links := []ProductAlertRule{}
	err := r.db.WithContext(ctx).
		Joins("AlertRule").
		Where("product_alert_rule.product_id = ?", productID).
		Order("product_alert_rule.product_id ASC, product_alert_rule.alert_rule_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, MapError(err)
	}
	return links, nil
}

func (r *catalogRepository) DeleteProductAlertRule(ctx context.Context, productID, alertRuleID uint) error {
	result := r.db.WithContext(ctx).
		Where("product_id = ? AND alert_rule_id = ?", productID, alertRuleID).
		Delete(&ProductAlertRule{})
	if result.Error != nil {
		return MapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *catalogRepository) SoftDelete(ctx context.Context, model any, id uint) error {
	return SoftDelete(ctx, r.db, model, id)
}

func (r *catalogRepository) create(ctx context.Context, value any) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(value).Error
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

func (r *catalogRepository) delete(ctx context.Context, model any, id uint) error {
	result := r.db.WithContext(ctx).Delete(model, id)
	if result.Error != nil {
		return MapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
