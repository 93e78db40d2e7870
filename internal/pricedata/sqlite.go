package pricedata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Table names read by LoadSQLite.
const (
	PricesTable    = "prices"
	ForecastsTable = "forecasts"
)

// LoadSQLite reads the prices and forecasts tables of a SQLite database.
// Either table may be absent. The prices table must have date, crop, market
// and price columns; supply and demand are optional. The forecasts table
// must have ds, crop, market and yhat. Rows that cannot be read are skipped
// and counted in Stats.
func LoadSQLite(ctx context.Context, path string) (*Dataset, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open price database: %w", err)
	}
	defer db.Close()

	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to price database %s: %w", path, err)
	}

	ds := NewDataset()

	cols, err := tableColumns(ctx, db, PricesTable)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		if err = loadPriceRows(ctx, db, ds, cols); err != nil {
			return nil, err
		}
	}

	cols, err = tableColumns(ctx, db, ForecastsTable)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		if err = loadForecastRows(ctx, db, ds); err != nil {
			return nil, err
		}
	}

	ds.Finalize()
	return ds, nil
}

// tableColumns returns the lower-cased column names of table, empty when the table is absent.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("inspecting table %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err = rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspecting table %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

func loadPriceRows(ctx context.Context, db *sql.DB, ds *Dataset, cols map[string]bool) error {
	for _, c := range []string{"date", "crop", "market", "price"} {
		if !cols[c] {
			return fmt.Errorf("%w: %s.%s", ErrMissingColumn, PricesTable, c)
		}
	}

	withSD := cols["supply"] && cols["demand"]
	query := "SELECT date, crop, market, price, NULL, NULL FROM " + PricesTable
	if withSD {
		query = "SELECT date, crop, market, price, supply, demand FROM " + PricesTable
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date, crop, market    sql.NullString
			price, supply, demand sql.NullFloat64
		)
		if err = rows.Scan(&date, &crop, &market, &price, &supply, &demand); err != nil {
			ds.skipped++
			continue
		}
		t, dateErr := ParseDate(date.String)
		if dateErr != nil || !price.Valid || !validPrice(price.Float64) {
			ds.skipped++
			continue
		}

		p := PricePoint{Date: t, Price: price.Float64}
		if supply.Valid && demand.Valid {
			p.Supply, p.Demand, p.HasSupplyDemand = supply.Float64, demand.Float64, true
		}
		ds.AddPrice(crop.String, market.String, p)
	}
	return rows.Err()
}

func loadForecastRows(ctx context.Context, db *sql.DB, ds *Dataset) error {
	rows, err := db.QueryContext(ctx, "SELECT ds, crop, market, yhat FROM "+ForecastsTable)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date, crop, market sql.NullString
			yhat               sql.NullFloat64
		)
		if err = rows.Scan(&date, &crop, &market, &yhat); err != nil {
			ds.skipped++
			continue
		}
		t, dateErr := ParseDate(date.String)
		if dateErr != nil || !yhat.Valid || !validPrice(yhat.Float64) {
			ds.skipped++
			continue
		}
		ds.AddForecast(crop.String, market.String, ForecastPoint{Date: t, Value: yhat.Float64})
	}
	return rows.Err()
}
