package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/internal/cache"
	"github.com/diewo77/go-quotes/internal/eligibility"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/validation"
)

// RuleService manages stored part rules and assembles the effective rule set.
type RuleService struct {
	db       *gorm.DB
	cache    cache.RuleCache
	defaults eligibility.Defaults
	log      *zap.Logger
}

func NewRuleService(db *gorm.DB, c cache.RuleCache, defaults eligibility.Defaults, log *zap.Logger) *RuleService {
	if c == nil {
		c = cache.Nop{}
	}
	return &RuleService{db: db, cache: c, defaults: defaults, log: log}
}

// RuleInput is the writable part of a rule.
type RuleInput struct {
	PartName    string              `json:"part_name"`
	RuleType    models.PartRuleType `json:"rule_type"`
	Brands      []string            `json:"brands"`
	Description string              `json:"description"`
}

// PartsResult lists the catalog split by eligibility for one brand.
type PartsResult struct {
	Brand       string   `json:"brand"`
	Available   []string `json:"available"`
	Unavailable []string `json:"unavailable"`
	Version     string   `json:"version"`
}

func (s *RuleService) List(ctx context.Context) ([]models.PartRule, error) {
	var rules []models.PartRule
	if err := s.db.WithContext(ctx).Order("part_name").Find(&rules).Error; err != nil {
		return nil, errors.Wrap(err, "list part rules")
	}
	return rules, nil
}

func (s *RuleService) Get(ctx context.Context, partName string) (*models.PartRule, error) {
	var rule models.PartRule
	err := s.db.WithContext(ctx).Where("part_name = ?", strings.TrimSpace(partName)).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "part rule %q", partName)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get part rule")
	}
	return &rule, nil
}

// Upsert creates the rule for in.PartName or replaces the existing one.
// The boolean reports whether a new rule was created.
func (s *RuleService) Upsert(ctx context.Context, userID uint, in RuleInput) (*models.PartRule, bool, error) {
	in, err := normalizeRule(in)
	if err != nil {
		return nil, false, err
	}
	var (
		rule    models.PartRule
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("part_name = ?", in.PartName).First(&rule).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			rule = models.PartRule{PartName: in.PartName, CreatedBy: userID}
		case err != nil:
			return err
		}
		rule.RuleType = in.RuleType
		rule.Brands = in.Brands
		rule.Description = in.Description
		return tx.Save(&rule).Error
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "save part rule")
	}
	s.invalidate(ctx)
	s.log.Info("part rule saved",
		zap.String("part_name", rule.PartName),
		zap.String("rule_type", string(rule.RuleType)),
		zap.Bool("created", created),
		zap.Uint("user_id", userID),
	)
	return &rule, created, nil
}

func (s *RuleService) Delete(ctx context.Context, partName string) error {
	res := s.db.WithContext(ctx).Where("part_name = ?", strings.TrimSpace(partName)).Delete(&models.PartRule{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete part rule")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "part rule %q", partName)
	}
	s.invalidate(ctx)
	return nil
}

// RuleSet returns the baked-in defaults overlaid with every stored rule.
func (s *RuleService) RuleSet(ctx context.Context) (eligibility.RuleSet, error) {
	// The generation is taken before reading the table. If a write commits
	// and invalidates in between, Set stores under an outdated generation and
	// the next reader loads again.
	rs, gen, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("rule cache read failed", zap.Error(err))
	}
	if ok {
		return rs, nil
	}

	var stored []models.PartRule
	if err := s.db.WithContext(ctx).Find(&stored).Error; err != nil {
		return eligibility.RuleSet{}, errors.Wrap(err, "load part rules")
	}
	rs = eligibility.Overlay(s.defaults.Rules, storedRuleSet(stored))
	if err := s.cache.Set(ctx, gen, rs); err != nil {
		s.log.Warn("rule cache write failed", zap.Error(err))
	}
	return rs, nil
}

// Parts splits the catalog, extended with parts that only have a stored rule,
// into parts offered and not offered for brand.
func (s *RuleService) Parts(ctx context.Context, brand string) (PartsResult, error) {
	rs, err := s.RuleSet(ctx)
	if err != nil {
		return PartsResult{}, err
	}
	catalog := s.catalog(rs)
	return PartsResult{
		Brand:       strings.TrimSpace(brand),
		Available:   eligibility.FilterAvailable(catalog, brand, rs),
		Unavailable: eligibility.FilterUnavailable(catalog, brand, rs),
		Version:     rs.Version(),
	}, nil
}

// IsAvailable evaluates one part against the current rule set.
func (s *RuleService) IsAvailable(ctx context.Context, part, brand string) (bool, error) {
	rs, err := s.RuleSet(ctx)
	if err != nil {
		return false, err
	}
	return eligibility.IsAvailable(part, brand, rs), nil
}

func (s *RuleService) catalog(rs eligibility.RuleSet) []string {
	known := make(map[string]bool, len(s.defaults.Catalog))
	out := append([]string(nil), s.defaults.Catalog...)
	for _, p := range out {
		known[p] = true
	}
	for _, p := range rs.Parts() {
		if !known[p] {
			out = append(out, p)
		}
	}
	return out
}

func (s *RuleService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("rule cache invalidation failed", zap.Error(err))
	}
}

// storedRuleSet builds a rule set versioned by record count and latest update.
func storedRuleSet(records []models.PartRule) eligibility.RuleSet {
	var latest time.Time
	rules := make(map[string]eligibility.Rule, len(records))
	for _, r := range records {
		rules[r.PartName] = eligibility.FromRecord(string(r.RuleType), r.Brands)
		if r.UpdatedAt.After(latest) {
			latest = r.UpdatedAt
		}
	}
	version := fmt.Sprintf("%d-%d", len(records), latest.UnixNano())
	if len(records) == 0 {
		version = eligibility.DefaultsVersion
	}
	return eligibility.NewRuleSet(version, rules)
}

func normalizeRule(in RuleInput) (RuleInput, error) {
	in.PartName = strings.TrimSpace(in.PartName)
	in.Description = strings.TrimSpace(in.Description)
	v := validation.Violations{}
	validation.Required("part_name", in.PartName, v)
	validation.MaxLen("part_name", in.PartName, 255, v)
	validation.MaxLen("description", in.Description, 1000, v)
	if !in.RuleType.Valid() {
		v["rule_type"] = "invalid_choice"
	}
	in.Brands = dedupeBrands(in.Brands)
	if in.RuleType == models.RuleNone {
		in.Brands = []string{}
	} else if in.RuleType.Valid() && len(in.Brands) == 0 {
		v["brands"] = "required"
	}
	return in, v.Err()
}

// dedupeBrands trims brands and drops blanks and case-folded duplicates,
// keeping the first spelling. The result is sorted.
func dedupeBrands(brands []string) []string {
	seen := make(map[string]bool, len(brands))
	out := make([]string, 0, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(b)
		key := eligibility.NormalizeBrand(b)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
