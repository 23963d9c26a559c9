package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/thresholds"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/validation"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	repo "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/catalog"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

var tracer = otel.Tracer("iot-energy-mgmt/catalog")

type CatalogService interface {
	CreateCategory(ctx context.Context, category types.Category) (types.Category, error)
	GetCategories(ctx context.Context, opts application.ListOptions) ([]types.Category, error)
	DeleteCategory(ctx context.Context, categoryID uint, soft bool) error

	CreateProduct(ctx context.Context, product types.Product) (types.Product, error)
	GetProduct(ctx context.Context, productID uint) (types.Product, error)
	GetProducts(ctx context.Context, opts application.ListOptions) ([]types.Product, error)
	DeleteProduct(ctx context.Context, productID uint, soft bool) error

	CreateAlertRule(ctx context.Context, rule types.AlertRule) (types.AlertRule, error)
	GetAlertRule(ctx context.Context, alertRuleID uint) (types.AlertRule, error)
	GetAlertRules(ctx context.Context, opts application.ListOptions) ([]types.AlertRule, error)
	DeleteAlertRule(ctx context.Context, alertRuleID uint, soft bool) error

	LinkProduct(ctx context.Context, link types.ProductAlertRule) (types.ProductAlertRule, error)
	UpdateLink(ctx context.Context, link types.ProductAlertRule) (types.ProductAlertRule, error)
	UnlinkProduct(ctx context.Context, productID, alertRuleID uint) error
	GetProductAlertRules(ctx context.Context, productID uint) ([]types.ProductAlertRule, error)

	Thresholds(ctx context.Context, productID, alertRuleID uint) (types.Thresholds, error)
	ProductThresholds(ctx context.Context, productID uint) ([]types.Thresholds, error)

	Seed(ctx context.Context, cfg application.CatalogConfig) error
}

type service struct {
	repo     repo.CatalogRepository
	resolver thresholds.Resolver
}

func New(r repo.CatalogRepository, resolver thresholds.Resolver) CatalogService {
	return &service{
		repo:     r,
		resolver: resolver,
	}
}

func (s *service) CreateCategory(ctx context.Context, category types.Category) (types.Category, error) {
	if err := validation.Struct(category); err != nil {
		return types.Category{}, err
	}

	c := &database.Category{Name: category.Name}
	c.Status = category.Status

	if err := s.repo.AddCategory(ctx, c); err != nil {
		return types.Category{}, err
	}

	return application.MapCategory(*c), nil
}

func (s *service) GetCategories(ctx context.Context, opts application.ListOptions) ([]types.Category, error) {
	categories, err := s.repo.GetCategories(ctx, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(categories, application.MapCategory), nil
}

func (s *service) DeleteCategory(ctx context.Context, categoryID uint, soft bool) error {
	if soft {
		return s.repo.SoftDelete(ctx, &database.Category{}, categoryID)
	}
	return s.repo.DeleteCategory(ctx, categoryID)
}

func (s *service) CreateProduct(ctx context.Context, product types.Product) (types.Product, error) {
	if err := validation.Struct(product); err != nil {
		return types.Product{}, err
	}

	if _, err := s.repo.GetCategory(ctx, product.CategoryID); err != nil {
		return types.Product{}, fieldNotFound(err, "categoryID")
	}

	p := &database.Product{
		Name:            product.Name,
		CategoryID:      product.CategoryID,
		SKU:             product.SKU,
		Manufacturer:    product.Manufacturer,
		ModelName:       product.ModelName,
		Description:     product.Description,
		NominalVoltageV: product.NominalVoltageV,
		MaxCurrentA:     product.MaxCurrentA,
		StandbyPowerW:   product.StandbyPowerW,
	}
	p.Status = product.Status

	if err := s.repo.AddProduct(ctx, p); err != nil {
		return types.Product{}, err
	}

	return application.MapProduct(*p), nil
}

func (s *service) GetProduct(ctx context.Context, productID uint) (types.Product, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return types.Product{}, err
	}
	return application.MapProduct(p), nil
}

func (s *service) GetProducts(ctx context.Context, opts application.ListOptions) ([]types.Product, error) {
	products, err := s.repo.GetProducts(ctx, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(products, application.MapProduct), nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uint, soft bool) error {
	if soft {
		return s.repo.SoftDelete(ctx, &database.Product{}, productID)
	}

	err := s.repo.DeleteProduct(ctx, productID)
	if err != nil {
		return err
	}

	// links of the product are gone with it
	s.resolver.Flush()

	return nil
}

func (s *service) CreateAlertRule(ctx context.Context, rule types.AlertRule) (types.AlertRule, error) {
	if err := validation.Struct(rule); err != nil {
		return types.AlertRule{}, err
	}

	r := &database.AlertRule{
		Name:                rule.Name,
		Severity:            rule.Severity,
		Unit:                rule.Unit,
		DefaultMinThreshold: rule.DefaultMinThreshold,
		DefaultMaxThreshold: rule.DefaultMaxThreshold,
	}
	r.Status = rule.Status

	if err := s.repo.AddAlertRule(ctx, r); err != nil {
		return types.AlertRule{}, err
	}

	return application.MapAlertRule(*r), nil
}

func (s *service) GetAlertRule(ctx context.Context, alertRuleID uint) (types.AlertRule, error) {
	r, err := s.repo.GetAlertRule(ctx, alertRuleID)
	if err != nil {
		return types.AlertRule{}, err
	}
	return application.MapAlertRule(r), nil
}

func (s *service) GetAlertRules(ctx context.Context, opts application.ListOptions) ([]types.AlertRule, error) {
	rules, err := s.repo.GetAlertRules(ctx, opts.Conditions()...)
	if err != nil {
		return nil, err
	}
	return application.MapAll(rules, application.MapAlertRule), nil
}

func (s *service) DeleteAlertRule(ctx context.Context, alertRuleID uint, soft bool) error {
	if soft {
		return s.repo.SoftDelete(ctx, &database.AlertRule{}, alertRuleID)
	}

	err := s.repo.DeleteAlertRule(ctx, alertRuleID)
	if err != nil {
		return err
	}

	s.resolver.Flush()

	return nil
}

func (s *service) LinkProduct(ctx context.Context, link types.ProductAlertRule) (types.ProductAlertRule, error) {
	if err := validation.Struct(link); err != nil {
		return types.ProductAlertRule{}, err
	}

	if _, err := s.repo.GetProduct(ctx, link.ProductID); err != nil {
		return types.ProductAlertRule{}, err
	}
	rule, err := s.repo.GetAlertRule(ctx, link.AlertRuleID)
	if err != nil {
		return types.ProductAlertRule{}, err
	}

	l := newLink(link)

	err = s.repo.AddProductAlertRule(ctx, l)
	if err != nil {
		return types.ProductAlertRule{}, err
	}

	s.resolver.Invalidate(l.ProductID, l.AlertRuleID)

	l.AlertRule = rule
	return application.MapProductAlertRule(*l), nil
}

func (s *service) UpdateLink(ctx context.Context, link types.ProductAlertRule) (types.ProductAlertRule, error) {
	if err := validation.Struct(link); err != nil {
		return types.ProductAlertRule{}, err
	}

	l := newLink(link)

	err := s.repo.UpdateProductAlertRule(ctx, l)
	if err != nil {
		return types.ProductAlertRule{}, err
	}

	s.resolver.Invalidate(l.ProductID, l.AlertRuleID)

	updated, err := s.repo.FindProductAlertRule(ctx, l.ProductID, l.AlertRuleID)
	if err != nil {
		return types.ProductAlertRule{}, err
	}

	return application.MapProductAlertRule(updated), nil
}

func (s *service) UnlinkProduct(ctx context.Context, productID, alertRuleID uint) error {
	err := s.repo.DeleteProductAlertRule(ctx, productID, alertRuleID)
	if err != nil {
		return err
	}

	s.resolver.Invalidate(productID, alertRuleID)

	return nil
}

func (s *service) GetProductAlertRules(ctx context.Context, productID uint) ([]types.ProductAlertRule, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	links, err := s.repo.GetProductAlertRules(ctx, productID)
	if err != nil {
		return nil, err
	}

	return application.MapAll(links, application.MapProductAlertRule), nil
}

// Thresholds returns the effective thresholds of a rule for a product, or
// database.ErrNotFound when either of them does not exist.
func (s *service) Thresholds(ctx context.Context, productID, alertRuleID uint) (result types.Thresholds, err error) {
	ctx, span := tracer.Start(ctx, "resolve-thresholds")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return types.Thresholds{}, err
	}

	rule, err := s.repo.GetAlertRule(ctx, alertRuleID)
	if err != nil {
		return types.Thresholds{}, err
	}

	return s.resolve(ctx, product, rule)
}

// ProductThresholds resolves every alert rule linked to a product.
func (s *service) ProductThresholds(ctx context.Context, productID uint) (result []types.Thresholds, err error) {
	ctx, span := tracer.Start(ctx, "resolve-product-thresholds")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	links, err := s.repo.GetProductAlertRules(ctx, productID)
	if err != nil {
		return nil, err
	}

	result = make([]types.Thresholds, 0, len(links))
	for _, l := range links {
		t, err := s.resolve(ctx, product, l.AlertRule)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	return result, nil
}

func (s *service) resolve(ctx context.Context, product database.Product, rule database.AlertRule) (types.Thresholds, error) {
	t, err := s.resolver.Resolve(ctx, product, rule)
	if err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Error().Err(err).Uint("product", product.ID).Uint("alertRule", rule.ID).Msg("failed to resolve thresholds")
		return types.Thresholds{}, err
	}

	return types.Thresholds{
		ProductID:   product.ID,
		AlertRuleID: rule.ID,
		AlertRule:   rule.Name,
		Severity:    rule.Severity,
		Unit:        rule.Unit,
		Min:         t.Min,
		Max:         t.Max,
	}, nil
}

func newLink(link types.ProductAlertRule) *database.ProductAlertRule {
	l := &database.ProductAlertRule{
		ProductID:    link.ProductID,
		AlertRuleID:  link.AlertRuleID,
		MinThreshold: link.MinThreshold,
		MaxThreshold: link.MaxThreshold,
		UnitOverride: link.UnitOverride,
	}
	l.Status = link.Status
	return l
}

// fieldNotFound reports a missing reference from an input as a field error
// of that input.
func fieldNotFound(err error, field string) error {
	if errors.Is(err, database.ErrNotFound) {
		return validation.NewValidationError(field, "does not exist")
	}
	return fmt.Errorf("failed to look up %s: %w", field, err)
}
