package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/pkg/db/option"
	"gorm.io/gorm"
)

const ruleColumns = `id, org_id, code, name, description, rule_type, calculation_type,
	value, priority, status, valid_from, valid_to, item_id, item_ids, category_id,
	category_ids, supplier_id, partner_id, min_quantity, max_usage_count,
	current_usage_count, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.PriceRule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO price_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.OrgID,
		rule.Code,
		rule.Name,
		rule.Description,
		rule.RuleType,
		rule.CalculationType,
		rule.Value,
		rule.Priority,
		rule.Status,
		rule.ValidFrom,
		rule.ValidTo,
		rule.ItemID,
		rule.ItemIDs,
		rule.CategoryID,
		rule.CategoryIDs,
		rule.SupplierID,
		rule.PartnerID,
		rule.MinQuantity,
		rule.MaxUsageCount,
		rule.CurrentUsageCount,
		rule.Metadata,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.PriceRule) error {
	return db.WithContext(ctx).Exec(
		`UPDATE price_rules SET
			code = ?, name = ?, description = ?, calculation_type = ?, value = ?,
			priority = ?, status = ?, valid_from = ?, valid_to = ?, item_id = ?,
			item_ids = ?, category_id = ?, category_ids = ?, supplier_id = ?,
			partner_id = ?, min_quantity = ?, max_usage_count = ?, metadata = ?,
			updated_at = ?
		WHERE org_id = ? AND id = ?`,
		rule.Code,
		rule.Name,
		rule.Description,
		rule.CalculationType,
		rule.Value,
		rule.Priority,
		rule.Status,
		rule.ValidFrom,
		rule.ValidTo,
		rule.ItemID,
		rule.ItemIDs,
		rule.CategoryID,
		rule.CategoryIDs,
		rule.SupplierID,
		rule.PartnerID,
		rule.MinQuantity,
		rule.MaxUsageCount,
		rule.Metadata,
		rule.UpdatedAt,
		rule.OrgID,
		rule.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM price_rules WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PriceRule, error) {
	var rule domain.PriceRule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM price_rules WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, opts ...option.QueryOption) ([]domain.PriceRule, error) {
	stmt := applyListFilter(db.WithContext(ctx).Model(&domain.PriceRule{}), filter)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var items []domain.PriceRule
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error) {
	var total int64
	err := applyListFilter(db.WithContext(ctx).Model(&domain.PriceRule{}), filter).Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// FindCandidates narrows the rule set with the equality scoping columns.
// Promotion lists are not inspected here; callers run the selector on the
// result.
func (r *repo) FindCandidates(ctx context.Context, db *gorm.DB, filter domain.CandidateFilter) ([]domain.PriceRule, error) {
	var items []domain.PriceRule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM price_rules
		WHERE org_id = ?
		AND status IN ('ACTIVE', 'SCHEDULED')
		AND (
			rule_type IN ('PROMOTION', 'LIST')
			OR (rule_type = 'ITEM' AND (item_id IS NULL OR item_id = ?))
			OR (rule_type = 'CATEGORY' AND (category_id IS NULL OR category_id = ?))
			OR (rule_type = 'SUPPLIER' AND (supplier_id IS NULL OR supplier_id = ?))
			OR (rule_type = 'PARTNER' AND (partner_id IS NULL OR partner_id = ?))
		)
		ORDER BY priority ASC, id ASC`,
		filter.OrgID,
		filter.ItemID,
		filter.CategoryID,
		filter.SupplierID,
		filter.PartnerID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE price_rules
		SET current_usage_count = current_usage_count + 1, updated_at = ?
		WHERE org_id = ? AND id = ?
		AND (max_usage_count IS NULL OR current_usage_count < max_usage_count)`,
		now,
		orgID,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListRefreshable(ctx context.Context, db *gorm.DB, orgID *snowflake.ID) ([]domain.PriceRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM price_rules WHERE status IN ('ACTIVE', 'SCHEDULED')`
	args := []any{}
	if orgID != nil {
		query += ` AND org_id = ?`
		args = append(args, *orgID)
	}
	query += ` ORDER BY org_id ASC, id ASC`

	var items []domain.PriceRule
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, status domain.Status, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE price_rules SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		status,
		now,
		orgID,
		id,
	).Error
}

func applyListFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	stmt = stmt.Where("org_id = ?", filter.OrgID)
	if filter.RuleType != "" {
		stmt = stmt.Where("rule_type = ?", filter.RuleType)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CalculationType != "" {
		stmt = stmt.Where("calculation_type = ?", filter.CalculationType)
	}
	if filter.ItemID != "" {
		stmt = stmt.Where("item_id = ?", filter.ItemID)
	}
	if filter.CategoryID != "" {
		stmt = stmt.Where("category_id = ?", filter.CategoryID)
	}
	if filter.SupplierID != "" {
		stmt = stmt.Where("supplier_id = ?", filter.SupplierID)
	}
	if filter.PartnerID != "" {
		stmt = stmt.Where("partner_id = ?", filter.PartnerID)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		stmt = stmt.Where("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", pattern, pattern)
	}
	return stmt
}
