package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"zeitprognose/models"
	"zeitprognose/utils"
)

// PostgresHistory stores the historical table in PostgreSQL so a server can
// load it without access to the spreadsheet.
type PostgresHistory struct {
	db *sql.DB
}

// NewPostgresHistory opens a connection, waits for the server to accept
// pings, and runs schema migrations.
func NewPostgresHistory(ctx context.Context, dsn string, log *utils.Logger) (*PostgresHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second, Logger: log}
	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ph := &PostgresHistory{db: db}
	if err := ph.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ph, nil
}

func (ph *PostgresHistory) migrate(ctx context.Context) error {
	_, err := ph.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS historical_projects (
			id                 SERIAL PRIMARY KEY,
			row_no             INTEGER          NOT NULL,
			project_id         TEXT             NOT NULL DEFAULT '',
			system_count       INTEGER          NOT NULL,
			drawing_time_total DOUBLE PRECISION NOT NULL,
			bom_time_total     DOUBLE PRECISION NOT NULL,
			assigned_employee  TEXT             NOT NULL DEFAULT '',
			imported_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS historical_systems (
			project_ref   INTEGER NOT NULL REFERENCES historical_projects(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			product_type  TEXT,
			area_m2       DOUBLE PRECISION,
			side_cladding TEXT,
			roof_type     TEXT,
			trade_count   INTEGER,
			PRIMARY KEY (project_ref, position)
		);

		CREATE INDEX IF NOT EXISTS idx_historical_projects_row      ON historical_projects(row_no);
		CREATE INDEX IF NOT EXISTS idx_historical_projects_employee ON historical_projects(assigned_employee);
	`)
	return err
}

// Write replaces the stored table with projects, in one transaction.
func (ph *PostgresHistory) Write(ctx context.Context, projects []models.HistoricalProject) error {
	tx, err := ph.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM historical_projects"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	for _, p := range projects {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO historical_projects (row_no, project_id, system_count, drawing_time_total, bom_time_total, assigned_employee)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, p.Row, p.ProjectID, p.SystemCount, p.DrawingTimeTotal, p.BOMTimeTotal, p.AssignedEmployee).Scan(&id)
		if err != nil {
			return fmt.Errorf("postgres: insert project row %d: %w", p.Row, err)
		}
		if err := insertSystems(ctx, tx, id, p.Systems); err != nil {
			return fmt.Errorf("postgres: insert systems of row %d: %w", p.Row, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func insertSystems(ctx context.Context, tx *sql.Tx, projectRef int64, systems []models.System) error {
	if len(systems) == 0 {
		return nil
	}
	valueStrings := make([]string, 0, len(systems))
	valueArgs := make([]interface{}, 0, len(systems)*7)

	for idx, s := range systems {
		base := idx * 7
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		valueArgs = append(valueArgs,
			projectRef, idx+1, s.ProductType, s.AreaM2, s.SideCladding, s.RoofType, s.TradeCount)
	}

	query := fmt.Sprintf(`
		INSERT INTO historical_systems (project_ref, position, product_type, area_m2, side_cladding, roof_type, trade_count)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

// Projects loads the table in its original row order.
func (ph *PostgresHistory) Projects(ctx context.Context) ([]models.HistoricalProject, error) {
	rows, err := ph.db.QueryContext(ctx, `
		SELECT p.id, p.row_no, p.project_id, p.system_count, p.drawing_time_total, p.bom_time_total, p.assigned_employee,
		       s.position, s.product_type, s.area_m2, s.side_cladding, s.roof_type, s.trade_count
		FROM historical_projects p
		LEFT JOIN historical_systems s ON s.project_ref = p.id
		ORDER BY p.row_no, p.id, s.position
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch projects: %w", err)
	}
	defer rows.Close()

	var out []models.HistoricalProject
	lastID := int64(-1)
	for rows.Next() {
		var (
			id       int64
			p        models.HistoricalProject
			position sql.NullInt64
			product  sql.NullString
			area     sql.NullFloat64
			side     sql.NullString
			roof     sql.NullString
			trades   sql.NullInt64
		)
		if err := rows.Scan(
			&id, &p.Row, &p.ProjectID, &p.SystemCount, &p.DrawingTimeTotal, &p.BOMTimeTotal, &p.AssignedEmployee,
			&position, &product, &area, &side, &roof, &trades,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if id != lastID {
			out = append(out, p)
			lastID = id
		}
		if !position.Valid {
			continue
		}
		cur := &out[len(out)-1]
		cur.Systems = append(cur.Systems, models.System{
			ProductType:  nullString(product),
			AreaM2:       nullFloat(area),
			SideCladding: nullString(side),
			RoofType:     nullString(roof),
			TradeCount:   nullInt(trades),
		})
	}
	return out, rows.Err()
}

func (ph *PostgresHistory) Close() error {
	return ph.db.Close()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
