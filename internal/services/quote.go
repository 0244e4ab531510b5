package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/workflow"
	"github.com/diewo77/go-quotes/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// editableStatuses are the statuses in which parts and prices may change.
var editableStatuses = map[models.QuoteStatus]bool{
	models.QuoteStatusUnpriced:            true,
	models.QuoteStatusWaitingVerification: true,
	models.QuoteStatusPriced:              true,
	models.QuoteStatusWrong:               true,
}

// QuoteService runs quote creation, edits and workflow transitions. Every
// write and its audit record share one transaction.
type QuoteService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewQuoteService(db *gorm.DB, log *zap.Logger) *QuoteService {
	return &QuoteService{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

type CustomerInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type VehicleInput struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	VIN   string `json:"vin"`
}

type CreateQuoteInput struct {
	Customer   CustomerInput          `json:"customer"`
	Vehicle    VehicleInput           `json:"vehicle"`
	Parts      []models.QuotePartItem `json:"parts"`
	RequiredBy *time.Time             `json:"required_by"`
}

// ItemPrices replaces the prices and variants of the item at the same index.
type ItemPrices struct {
	FinalPrice decimal.NullDecimal `json:"final_price"`
	ListPrice  decimal.NullDecimal `json:"list_price"`
	Variants   []models.Variant    `json:"variants"`
}

type ListQuotesFilter struct {
	Status models.QuoteStatus
	Page   int
	Limit  int
}

type QuotePage struct {
	Items []models.Quote `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// Skipped is a quote left out of a bulk operation.
type Skipped struct {
	ID     uint               `json:"id"`
	Status models.QuoteStatus `json:"status,omitempty"`
	Reason string             `json:"reason"`
}

type DeliverResult struct {
	Delivered []uint    `json:"delivered"`
	Skipped   []Skipped `json:"skipped"`
}

// Create stores the customer, the vehicle, the quote and its CREATED action
// in one transaction.
func (s *QuoteService) Create(ctx context.Context, userID uint, in CreateQuoteInput) (*models.Quote, error) {
	items, err := normalizeCreate(&in)
	if err != nil {
		return nil, err
	}
	var quote models.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer := models.Customer{Name: in.Customer.Name, Phone: in.Customer.Phone, Email: in.Customer.Email}
		if err := tx.Create(&customer).Error; err != nil {
			return errors.Wrap(err, "create customer")
		}
		vehicle := models.Vehicle{
			CustomerID: customer.ID,
			Brand:      in.Vehicle.Brand,
			Model:      in.Vehicle.Model,
			Year:       in.Vehicle.Year,
			VIN:        in.Vehicle.VIN,
		}
		if err := tx.Create(&vehicle).Error; err != nil {
			return errors.Wrap(err, "create vehicle")
		}
		quote = models.Quote{
			CustomerID: customer.ID,
			VehicleID:  vehicle.ID,
			CreatedBy:  userID,
			Status:     models.QuoteStatusUnpriced,
			RequiredBy: in.RequiredBy,
		}
		quote.SetParts(items)
		if err := tx.Omit(clause.Associations).Create(&quote).Error; err != nil {
			return errors.Wrap(err, "create quote")
		}
		s.audit(tx, quote.ID, userID, models.ActionCreated)
		quote.Customer = &customer
		quote.Vehicle = &vehicle
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("quote created", zap.Uint("quote_id", quote.ID), zap.Uint("user_id", userID), zap.Int("parts", len(items)))
	return &quote, nil
}

func (s *QuoteService) Get(ctx context.Context, id uint) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).Preload("Customer").Preload("Vehicle").First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "quote %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get quote")
	}
	return &q, nil
}

// List returns quotes newest first.
func (s *QuoteService) List(ctx context.Context, f ListQuotesFilter) (*QuotePage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation.Field("status", "invalid_choice")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}

	q := s.db.WithContext(ctx).Model(&models.Quote{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})
	page := &QuotePage{Page: f.Page, Limit: f.Limit, Items: []models.Quote{}}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count quotes")
	}
	err := q.Preload("Vehicle").
		Order("created_at DESC, id DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&page.Items).Error
	if err != nil {
		return nil, errors.Wrap(err, "list quotes")
	}
	return page, nil
}

// UpdatePrices replaces item prices and variants, then moves an unpriced
// quote to waiting_verification once an item is priced.
func (s *QuoteService) UpdatePrices(ctx context.Context, userID, id uint, prices []ItemPrices) (*models.Quote, error) {
	return s.transition(ctx, userID, id, workflow.EventPriceEntered, "", func(q *models.Quote) error {
		if !editableStatuses[q.Status] {
			return errors.Wrapf(ErrLocked, "quote %d is %s", q.ID, q.Status)
		}
		items, err := applyPrices(q.Parts(), prices)
		if err != nil {
			return err
		}
		q.SetParts(items)
		return nil
	})
}

// UpdateParts replaces the requested items, then moves a wrong quote back to
// unpriced once every item has a real part id.
func (s *QuoteService) UpdateParts(ctx context.Context, userID, id uint, items []models.QuotePartItem) (*models.Quote, error) {
	items, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, userID, id, workflow.EventPartsCorrected, "", func(q *models.Quote) error {
		if !editableStatuses[q.Status] {
			return errors.Wrapf(ErrLocked, "quote %d is %s", q.ID, q.Status)
		}
		q.SetParts(items)
		return nil
	})
}

func (s *QuoteService) Verify(ctx context.Context, userID, id uint) (*models.Quote, error) {
	return s.transition(ctx, userID, id, workflow.EventVerify, "", nil)
}

func (s *QuoteService) Complete(ctx context.Context, userID, id uint) (*models.Quote, error) {
	return s.transition(ctx, userID, id, workflow.EventComplete, "", nil)
}

// Order marks the quote ordered and stores the tax invoice number.
func (s *QuoteService) Order(ctx context.Context, userID, id uint, invoice string) (*models.Quote, error) {
	if strings.TrimSpace(invoice) == "" {
		return nil, workflow.ErrInvoiceNumberRequired
	}
	return s.transition(ctx, userID, id, workflow.EventOrder, invoice, nil)
}

func (s *QuoteService) MarkWrong(ctx context.Context, userID, id uint) (*models.Quote, error) {
	return s.transition(ctx, userID, id, workflow.EventMarkWrong, "", nil)
}

// Deliver moves every ordered quote among ids to delivered in one
// transaction. Missing quotes and quotes in other statuses are reported as
// skipped.
func (s *QuoteService) Deliver(ctx context.Context, userID uint, ids []uint) (*DeliverResult, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, validation.Field("ids", "required")
	}
	res := &DeliverResult{Delivered: []uint{}, Skipped: []Skipped{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quotes []models.Quote
		if err := tx.Where("id IN ?", ids).Find(&quotes).Error; err != nil {
			return errors.Wrap(err, "load quotes")
		}
		byID := make(map[uint]*models.Quote, len(quotes))
		for i := range quotes {
			byID[quotes[i].ID] = &quotes[i]
		}
		for _, id := range ids {
			q, ok := byID[id]
			if !ok {
				res.Skipped = append(res.Skipped, Skipped{ID: id, Reason: "not_found"})
				continue
			}
			r, err := workflow.Apply(q.Status, workflow.EventDeliver, workflow.Input{})
			if errors.Is(err, workflow.ErrInvalidTransition) {
				res.Skipped = append(res.Skipped, Skipped{ID: id, Status: q.Status, Reason: "invalid_transition"})
				continue
			}
			if err != nil {
				return err
			}
			if err := s.persist(tx, userID, q, r); err != nil {
				return err
			}
			res.Delivered = append(res.Delivered, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bulk delivery", zap.Uint("user_id", userID), zap.Int("delivered", len(res.Delivered)), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// Delete removes a quote. Its audit records are kept.
func (s *QuoteService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Quote{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete quote")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "quote %d", id)
	}
	return nil
}

// transition loads the quote, lets edit change it, applies ev and writes the
// quote with its audit record in one transaction.
func (s *QuoteService) transition(ctx context.Context, userID, id uint, ev workflow.Event, invoice string, edit func(*models.Quote) error) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&q, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrapf(ErrNotFound, "quote %d", id)
		}
		if err != nil {
			return errors.Wrap(err, "load quote")
		}
		edited := false
		if edit != nil {
			if err := edit(&q); err != nil {
				return err
			}
			edited = true
		}
		res, err := workflow.Apply(q.Status, ev, workflow.Input{Parts: q.Parts(), TaxInvoiceNumber: invoice})
		if err != nil {
			return err
		}
		// Re-pricing a priced quote is not a transition but the new prices
		// still have to be saved.
		if !res.Changed && !edited {
			return nil
		}
		return s.persist(tx, userID, &q, res)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// persist applies res to q, saves it and records the audit action.
func (s *QuoteService) persist(tx *gorm.DB, userID uint, q *models.Quote, res workflow.Result) error {
	now := s.now()
	q.Status = res.To
	switch res.Stamp {
	case workflow.StampCompleted:
		q.CompletedAt = &now
	case workflow.StampOrdered:
		q.OrderedAt = &now
	case workflow.StampDelivered:
		q.DeliveredAt = &now
	}
	if res.TaxInvoiceNumber != "" {
		q.TaxInvoiceNumber = res.TaxInvoiceNumber
	}
	if err := tx.Omit(clause.Associations).Save(q).Error; err != nil {
		return errors.Wrap(err, "save quote")
	}
	if res.Changed {
		s.log.Debug("quote transition",
			zap.Uint("quote_id", q.ID),
			zap.String("from", string(res.From)),
			zap.String("to", string(res.To)),
			zap.Uint("user_id", userID),
		)
		if res.Action != "" {
			s.audit(tx, q.ID, userID, res.Action)
		}
	}
	return nil
}

// audit records an action inside a savepoint. A failure rolls back only the
// savepoint and is logged.
func (s *QuoteService) audit(tx *gorm.DB, quoteID, userID uint, action models.ActionType) {
	// A nested Transaction on tx becomes SAVEPOINT / ROLLBACK TO in gorm.
	// Without it a failed insert would abort the outer postgres transaction
	// and take the status change down with it.
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&models.QuoteAction{
			QuoteID:    quoteID,
			UserID:     userID,
			ActionType: action,
			Timestamp:  s.now(),
		}).Error
	})
	if err != nil {
		s.log.Warn("audit action not recorded",
			zap.Uint("quote_id", quoteID),
			zap.Uint("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func normalizeCreate(in *CreateQuoteInput) ([]models.QuotePartItem, error) {
	in.Customer.Name = strings.TrimSpace(in.Customer.Name)
	in.Vehicle.Brand = strings.TrimSpace(in.Vehicle.Brand)
	in.Vehicle.VIN = strings.ToUpper(strings.TrimSpace(in.Vehicle.VIN))
	v := validation.Violations{}
	validation.Required("customer.name", in.Customer.Name, v)
	validation.Required("vehicle.brand", in.Vehicle.Brand, v)
	validation.MaxLen("vehicle.vin", in.Vehicle.VIN, 32, v)
	if in.Vehicle.Year != 0 {
		validation.RangeInt("vehicle.year", in.Vehicle.Year, 1900, 2100, v)
	}
	items, err := normalizeItems(in.Parts)
	var verr *validation.Error
	if errors.As(err, &verr) {
		for f, code := range verr.Violations {
			v[f] = code
		}
	} else if err != nil {
		return nil, err
	}
	return items, v.Err()
}

// normalizeItems trims identifiers, assigns variant ids and syncs item
// prices from the default variant.
func normalizeItems(items []models.QuotePartItem) ([]models.QuotePartItem, error) {
	v := validation.Violations{}
	if len(items) == 0 {
		v["parts"] = "required"
		return nil, v.Err()
	}
	out := make([]models.QuotePartItem, len(items))
	for i, it := range items {
		it.PartID = strings.TrimSpace(it.PartID)
		it.PartName = strings.TrimSpace(it.PartName)
		if it.PartID == "" && it.PartName == "" {
			v[fieldName("parts", i, "part_name")] = "required"
		}
		it.Variants = normalizeVariants(it.Variants)
		validatePrices(i, it, v)
		it.SyncDefaultPrices()
		out[i] = it
	}
	return out, v.Err()
}

func applyPrices(items []models.QuotePartItem, prices []ItemPrices) ([]models.QuotePartItem, error) {
	if len(prices) != len(items) {
		return nil, validation.Field("items", "length_mismatch")
	}
	v := validation.Violations{}
	out := make([]models.QuotePartItem, len(items))
	for i, it := range items {
		p := prices[i]
		it.FinalPrice = p.FinalPrice
		it.ListPrice = p.ListPrice
		it.Variants = normalizeVariants(p.Variants)
		validatePrices(i, it, v)
		it.SyncDefaultPrices()
		out[i] = it
	}
	return out, v.Err()
}

func normalizeVariants(variants []models.Variant) []models.Variant {
	if len(variants) == 0 {
		return nil
	}
	out := make([]models.Variant, len(variants))
	for i, vr := range variants {
		vr.ID = strings.TrimSpace(vr.ID)
		if vr.ID == "" {
			vr.ID = uuid.NewString()
		}
		vr.PartNumber = strings.TrimSpace(vr.PartNumber)
		out[i] = vr
	}
	return out
}

func validatePrices(i int, it models.QuotePartItem, v validation.Violations) {
	if it.DefaultCount() > 1 {
		v[fieldName("parts", i, "variants")] = "multiple_defaults"
	}
	if negative(it.FinalPrice) || negative(it.ListPrice) {
		v[fieldName("parts", i, "price")] = "must_not_be_negative"
	}
	for _, vr := range it.Variants {
		if negative(vr.FinalPrice) || negative(vr.ListPrice) {
			v[fieldName("parts", i, "variants")] = "must_not_be_negative"
		}
	}
}

func negative(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsNegative()
}

func fieldName(list string, i int, field string) string {
	return list + "[" + strconv.Itoa(i) + "]." + field
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
