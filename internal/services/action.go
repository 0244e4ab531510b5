package services

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/diewo77/go-quotes/internal/models"
)

// reportActions is the column order of action reports.
var reportActions = []models.ActionType{
	models.ActionCreated,
	models.ActionPriced,
	models.ActionVerified,
	models.ActionCompleted,
	models.ActionOrdered,
	models.ActionDelivered,
	models.ActionMarkedWrong,
}

// ActionService reads the audit trail for reporting.
type ActionService struct {
	db *gorm.DB
}

func NewActionService(db *gorm.DB) *ActionService {
	return &ActionService{db: db}
}

// ActionStat counts one user's actions of one type.
type ActionStat struct {
	UserID     uint              `json:"user_id"`
	UserName   string            `json:"user_name"`
	UserEmail  string            `json:"user_email"`
	ActionType models.ActionType `json:"action_type"`
	Count      int64             `json:"count"`
}

// Stats counts actions per user and type within [from, to). Zero bounds are open.
func (s *ActionService) Stats(ctx context.Context, from, to time.Time) ([]ActionStat, error) {
	q := s.db.WithContext(ctx).
		Table("quote_actions AS a").
		Select("a.user_id AS user_id, COALESCE(u.name, '') AS user_name, COALESCE(u.email, '') AS user_email, a.action_type AS action_type, COUNT(*) AS count").
		Joins("LEFT JOIN users u ON u.id = a.user_id")
	if !from.IsZero() {
		q = q.Where("a.timestamp >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("a.timestamp < ?", to.UTC())
	}
	stats := []ActionStat{}
	err := q.Group("a.user_id, u.name, u.email, a.action_type").
		Order("a.user_id, a.action_type").
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "action stats")
	}
	return stats, nil
}

// ForQuote returns a quote's audit trail, oldest first.
func (s *ActionService) ForQuote(ctx context.Context, quoteID uint) ([]models.QuoteAction, error) {
	actions := []models.QuoteAction{}
	err := s.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("timestamp, id").
		Find(&actions).Error
	if err != nil {
		return nil, errors.Wrap(err, "quote actions")
	}
	return actions, nil
}

// Export renders Stats as an XLSX workbook with one row per user and one
// column per action type.
func (s *ActionService) Export(ctx context.Context, from, to time.Time) ([]byte, error) {
	stats, err := s.Stats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return renderStats(stats)
}

type statRow struct {
	stat   ActionStat
	counts map[models.ActionType]int64
	total  int64
}

func renderStats(stats []ActionStat) ([]byte, error) {
	const sheet = "Actions"
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, errors.Wrap(err, "name sheet")
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "header style")
	}

	headers := []any{"User ID", "Name", "Email"}
	for _, a := range reportActions {
		headers = append(headers, string(a))
	}
	headers = append(headers, "Total")
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, errors.Wrap(err, "write header")
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, errors.Wrap(err, "style header")
	}

	var rows []*statRow
	byUser := map[uint]*statRow{}
	for _, st := range stats {
		r, ok := byUser[st.UserID]
		if !ok {
			r = &statRow{stat: st, counts: map[models.ActionType]int64{}}
			byUser[st.UserID] = r
			rows = append(rows, r)
		}
		r.counts[st.ActionType] += st.Count
		r.total += st.Count
	}
	for i, r := range rows {
		values := []any{r.stat.UserID, r.stat.UserName, r.stat.UserEmail}
		for _, a := range reportActions {
			values = append(values, r.counts[a])
		}
		values = append(values, r.total)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, errors.Wrap(err, "write row")
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", lastCol, 15); err != nil {
		return nil, errors.Wrap(err, "column width")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}
