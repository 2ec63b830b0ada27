package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
)

const publishedAtFormat = "2006-01-02 15:04:05.000"

// WriteQuotesCSV writes one line per published day: date, buy and sell rate
// and the publication timestamp
func WriteQuotesCSV(w io.Writer, quotes []entity.DailyQuote) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "buy_rate", "sell_rate", "published_at"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, q := range quotes {
		publishedAt := ""
		if !q.PublishedAt.IsZero() {
			publishedAt = q.PublishedAt.Format(publishedAtFormat)
		}
		record := []string{
			q.Date.Format(entity.DateFormat),
			q.BuyRate.String(),
			q.SellRate.String(),
			publishedAt,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write quote for %s: %w", q.Date.Format(entity.DateFormat), err)
		}
	}

	cw.Flush()
	return cw.Error()
}
