package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/storage"
	"github.com/rs/zerolog/log"
)

const loadQuery = `SELECT name, symbol, currency_type, COALESCE(provider_id, '')
				 FROM currency
				 WHERE is_available=true
				 ORDER BY position, symbol`

type Persistence struct {
	dbConn *sql.DB
}

func New(dbConn *sql.DB) storage.Storage {
	return &Persistence{
		dbConn: dbConn,
	}
}

// Load implements storage.Storage.
func (p *Persistence) Load(ctx context.Context) ([]model.Currency, error) {
	var currencies []model.Currency

	rows, err := p.dbConn.QueryContext(ctx, loadQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c      model.Currency
			symbol string
			kind   string
		)

		if err := rows.Scan(&c.Name, &symbol, &kind, &c.ProviderID); err != nil {
			return nil, err
		}

		if c.Symbol, err = model.ParseSymbol(symbol); err != nil {
			return nil, err
		}

		if c.Kind, err = model.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("currency %s: %w", symbol, err)
		}

		currencies = append(currencies, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug().Int("count", len(currencies)).Msg("loaded currencies from database")

	return currencies, nil
}
