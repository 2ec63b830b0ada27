package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// record is one trade as described by the model
type record struct {
	TransactionDate   string           `json:"transaction_date"`
	Ticker            string           `json:"ticker"`
	OperationType     string           `json:"operation_type"`
	Quantity          decimal.Decimal  `json:"quantity"`
	ShareValue        decimal.Decimal  `json:"share_value"`
	TotalValue        decimal.Decimal  `json:"total_value"`
	Commission        decimal.Decimal  `json:"commission"`
	SupplementalFee   decimal.Decimal  `json:"supplemental_fee"`
	AcquisitionDate   *string          `json:"acquisition_date"`
	CostBasisPerShare *decimal.Decimal `json:"cost_basis_per_share"`
}

var (
	answerTag = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)
	codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ParseRecords reads transactions from a model answer. The JSON object or
// array may be wrapped in <answer> tags or a code fence; the last one wins.
func ParseRecords(text string) ([]entity.Transaction, error) {
	payload := strings.TrimSpace(lastMatch(answerTag, text))
	if i := strings.LastIndex(payload, "<answer>"); i >= 0 {
		payload = strings.TrimSpace(payload[i+len("<answer>"):])
	}
	if fenced := lastMatch(codeFence, payload); fenced != "" {
		payload = strings.TrimSpace(fenced)
	}
	if payload == "" {
		payload = strings.TrimSpace(lastMatch(codeFence, text))
	}
	if payload == "" {
		payload = strings.TrimSpace(text)
	}

	var records []record
	switch {
	case strings.HasPrefix(payload, "["):
		if err := json.Unmarshal([]byte(payload), &records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
	case strings.HasPrefix(payload, "{"):
		var r record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, r)
	default:
		return nil, fmt.Errorf("no JSON found in answer")
	}

	txs := make([]entity.Transaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, r.transaction())
	}
	return txs, nil
}

func lastMatch(re *regexp.Regexp, text string) string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

// transaction maps the record onto a transaction. Fields that cannot be read
// are recorded on it, so the record fails validation on its own.
func (r record) transaction() entity.Transaction {
	price := r.ShareValue
	if price.IsZero() && r.Quantity.IsPositive() {
		price = r.TotalValue.Div(r.Quantity)
	}

	tx := entity.Transaction{
		Ticker:    strings.ToUpper(strings.TrimSpace(r.Ticker)),
		Quantity:  r.Quantity,
		UnitPrice: price,
		Fees:      r.Commission.Add(r.SupplementalFee),
	}

	direction, err := parseOperation(r.OperationType)
	if err != nil {
		tx.Direction = entity.Direction(strings.ToUpper(strings.TrimSpace(r.OperationType)))
		tx.MarkInvalid("direction", err.Error())
	} else {
		tx.Direction = direction
	}

	if tradeDate, err := ParseDocumentDate(r.TransactionDate); err == nil {
		tx.TradeDate = tradeDate
	} else {
		tx.MarkInvalid("trade_date", err.Error())
	}

	if direction == entity.DirectionSell {
		if r.AcquisitionDate != nil && strings.TrimSpace(*r.AcquisitionDate) != "" {
			if acquired, err := ParseDocumentDate(*r.AcquisitionDate); err == nil {
				tx.AcquisitionDate = &acquired
			} else {
				tx.MarkInvalid("acquisition_date", err.Error())
			}
		}
		tx.CostBasis = r.CostBasisPerShare
	}

	return tx
}

func parseOperation(s string) (entity.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sell", "sale", "venda", "v":
		return entity.DirectionSell, nil
	case "buy", "purchase", "compra", "c":
		return entity.DirectionBuy, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// documentDateLayouts are tried in order; slashes are month first, dashes day first
var documentDateLayouts = []string{
	entity.DateFormat,
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"02-01-2006",
}

// ParseDocumentDate reads the date formats found in brokerage confirmations
func ParseDocumentDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range documentDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
