package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

// Seed creates the configured categories, products, alert rules and links
// that do not already exist. Existing records are never modified.
func (s *service) Seed(ctx context.Context, cfg application.CatalogConfig) error {
	log := logging.GetFromContext(ctx)

	existing, err := s.repo.GetCategories(ctx)
	if err != nil {
		return err
	}

	categoryIDs := lo.Associate(existing, func(c database.Category) (string, uint) {
		return c.Name, c.ID
	})

	for _, c := range cfg.Categories {
		if _, ok := categoryIDs[c.Name]; ok {
			continue
		}

		created, err := s.CreateCategory(ctx, c)
		if err != nil {
			return fmt.Errorf("could not seed category %s: %w", c.Name, err)
		}
		categoryIDs[created.Name] = created.ID
	}

	for _, p := range cfg.Products {
		_, err := s.repo.GetProductBySKU(ctx, p.SKU)
		if err == nil {
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		categoryID, ok := categoryIDs[p.Category]
		if !ok {
			return fmt.Errorf("product %s refers to unknown category %s", p.SKU, p.Category)
		}
		p.CategoryID = categoryID

		if _, err := s.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("could not seed product %s: %w", p.SKU, err)
		}
	}

	for _, rc := range cfg.AlertRules {
		rule, err := s.seedAlertRule(ctx, rc.AlertRule)
		if err != nil {
			return err
		}

		for _, lc := range rc.Products {
			product, err := s.repo.GetProductBySKU(ctx, lc.SKU)
			if err != nil {
				return fmt.Errorf("alert rule %s refers to unknown product %s: %w", rule.Name, lc.SKU, err)
			}

			_, err = s.repo.FindProductAlertRule(ctx, product.ID, rule.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, database.ErrNotFound) {
				return err
			}

			_, err = s.LinkProduct(ctx, types.ProductAlertRule{
				ProductID:    product.ID,
				AlertRuleID:  rule.ID,
				MinThreshold: lc.Min,
				MaxThreshold: lc.Max,
				UnitOverride: lc.Unit,
			})
			if err != nil {
				return fmt.Errorf("could not link %s to %s: %w", lc.SKU, rule.Name, err)
			}
		}
	}

	log.Info().
		Int("categories", len(cfg.Categories)).
		Int("products", len(cfg.Products)).
		Int("alertRules", len(cfg.AlertRules)).
		Msg("catalog seeded")

	return nil
}

func (s *service) seedAlertRule(ctx context.Context, rule types.AlertRule) (types.AlertRule, error) {
	severity := lo.Ternary(rule.Severity == "", database.SeverityMedium, rule.Severity)

	existing, err := s.repo.GetAlertRuleByName(ctx, rule.Name, severity)
	if err == nil {
		return application.MapAlertRule(existing), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return types.AlertRule{}, err
	}

	created, err := s.CreateAlertRule(ctx, rule)
	if err != nil {
		return types.AlertRule{}, fmt.Errorf("could not seed alert rule %s: %w", rule.Name, err)
	}

	return created, nil
}
