package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
)

// SQLiteStore persists per-tenant automation and compliance settings.
// Ladder levels are stored as a JSON column; everything the relay needs at
// runtime lives in memory, this store only provides durability across
// restarts.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS automation_settings (
			tenant_key TEXT PRIMARY KEY,
			be_enabled BOOLEAN NOT NULL DEFAULT 0,
			be_trigger_pips REAL NOT NULL DEFAULT 10,
			be_offset_pips REAL NOT NULL DEFAULT 0,
			td_enabled BOOLEAN NOT NULL DEFAULT 0,
			td_mode TEXT NOT NULL DEFAULT 'ratio',
			td_rr REAL NOT NULL DEFAULT 2,
			td_amount REAL NOT NULL DEFAULT 0,
			td_lot_size REAL NOT NULL DEFAULT 0,
			td_pips REAL NOT NULL DEFAULT 0,
			td_min_rr REAL NOT NULL DEFAULT 1,
			pt_enabled BOOLEAN NOT NULL DEFAULT 0,
			pt_ladder TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS compliance_config (
			tenant_key TEXT PRIMARY KEY,
			daily_loss_limit REAL NOT NULL DEFAULT 0,
			daily_loss_percent REAL NOT NULL DEFAULT 0,
			include_floating BOOLEAN NOT NULL DEFAULT 0,
			close_open_trades BOOLEAN NOT NULL DEFAULT 0,
			prevent_new_trades BOOLEAN NOT NULL DEFAULT 1,
			news_lead_minutes REAL NOT NULL DEFAULT 0
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// SettingsRepository implementation

func (s *SQLiteStore) SaveAutomation(ctx context.Context, settings domain.AutomationSettings) error {
	ladder, err := json.Marshal(settings.PartialTP.Ladder.Levels)
	if err != nil {
		return fmt.Errorf("marshal ladder: %w", err)
	}

	query := `INSERT INTO automation_settings (tenant_key, be_enabled, be_trigger_pips, be_offset_pips,
			  td_enabled, td_mode, td_rr, td_amount, td_lot_size, td_pips, td_min_rr, pt_enabled, pt_ladder)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(tenant_key) DO UPDATE SET
			  be_enabled=excluded.be_enabled,
			  be_trigger_pips=excluded.be_trigger_pips,
			  be_offset_pips=excluded.be_offset_pips,
			  td_enabled=excluded.td_enabled,
			  td_mode=excluded.td_mode,
			  td_rr=excluded.td_rr,
			  td_amount=excluded.td_amount,
			  td_lot_size=excluded.td_lot_size,
			  td_pips=excluded.td_pips,
			  td_min_rr=excluded.td_min_rr,
			  pt_enabled=excluded.pt_enabled,
			  pt_ladder=excluded.pt_ladder`
	_, err = s.db.ExecContext(ctx, query,
		settings.TenantKey,
		settings.Breakeven.Enabled, settings.Breakeven.TriggerPips, settings.Breakeven.OffsetPips,
		settings.TargetDefault.Enabled, string(settings.TargetDefault.Policy.Mode),
		settings.TargetDefault.Policy.RR, settings.TargetDefault.Policy.Amount,
		settings.TargetDefault.Policy.LotSize, settings.TargetDefault.Policy.Pips,
		settings.TargetDefault.MinRR,
		settings.PartialTP.Enabled, string(ladder))
	return err
}

const automationColumns = `tenant_key, be_enabled, be_trigger_pips, be_offset_pips,
	td_enabled, td_mode, td_rr, td_amount, td_lot_size, td_pips, td_min_rr, pt_enabled, pt_ladder`

func (s *SQLiteStore) scanAutomation(scan func(...interface{}) error) (*domain.AutomationSettings, error) {
	var settings domain.AutomationSettings
	var mode, ladderJSON string
	err := scan(&settings.TenantKey,
		&settings.Breakeven.Enabled, &settings.Breakeven.TriggerPips, &settings.Breakeven.OffsetPips,
		&settings.TargetDefault.Enabled, &mode,
		&settings.TargetDefault.Policy.RR, &settings.TargetDefault.Policy.Amount,
		&settings.TargetDefault.Policy.LotSize, &settings.TargetDefault.Policy.Pips,
		&settings.TargetDefault.MinRR,
		&settings.PartialTP.Enabled, &ladderJSON)
	if err != nil {
		return nil, err
	}
	settings.TargetDefault.Policy.Mode = domain.TargetMode(mode)
	if err := json.Unmarshal([]byte(ladderJSON), &settings.PartialTP.Ladder.Levels); err != nil {
		return nil, fmt.Errorf("unmarshal ladder: %w", err)
	}
	settings.PartialTP.Ladder.Active = settings.PartialTP.Enabled
	return &settings, nil
}

func (s *SQLiteStore) GetAutomation(ctx context.Context, tenantKey string) (*domain.AutomationSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+automationColumns+` FROM automation_settings WHERE tenant_key = ?`,
		domain.NormalizeTenantKey(tenantKey))
	settings, err := s.scanAutomation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return settings, err
}

func (s *SQLiteStore) ListAutomation(ctx context.Context) ([]domain.AutomationSettings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+automationColumns+` FROM automation_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AutomationSettings
	for rows.Next() {
		settings, err := s.scanAutomation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *settings)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveCompliance(ctx context.Context, cfg domain.ComplianceConfig) error {
	query := `INSERT INTO compliance_config (tenant_key, daily_loss_limit, daily_loss_percent,
			  include_floating, close_open_trades, prevent_new_trades, news_lead_minutes)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(tenant_key) DO UPDATE SET
			  daily_loss_limit=excluded.daily_loss_limit,
			  daily_loss_percent=excluded.daily_loss_percent,
			  include_floating=excluded.include_floating,
			  close_open_trades=excluded.close_open_trades,
			  prevent_new_trades=excluded.prevent_new_trades,
			  news_lead_minutes=excluded.news_lead_minutes`
	_, err := s.db.ExecContext(ctx, query,
		cfg.TenantKey, cfg.DailyLossLimit, cfg.DailyLossPercent,
		cfg.IncludeFloating, cfg.CloseOpenTrades, cfg.PreventNewTrades, cfg.NewsLeadMinutes)
	return err
}

func (s *SQLiteStore) GetCompliance(ctx context.Context, tenantKey string) (*domain.ComplianceConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_key, daily_loss_limit, daily_loss_percent, include_floating,
		 close_open_trades, prevent_new_trades, news_lead_minutes
		 FROM compliance_config WHERE tenant_key = ?`,
		domain.NormalizeTenantKey(tenantKey))

	var cfg domain.ComplianceConfig
	err := row.Scan(&cfg.TenantKey, &cfg.DailyLossLimit, &cfg.DailyLossPercent,
		&cfg.IncludeFloating, &cfg.CloseOpenTrades, &cfg.PreventNewTrades, &cfg.NewsLeadMinutes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *SQLiteStore) ListCompliance(ctx context.Context) ([]domain.ComplianceConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_key, daily_loss_limit, daily_loss_percent, include_floating,
		 close_open_trades, prevent_new_trades, news_lead_minutes
		 FROM compliance_config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ComplianceConfig
	for rows.Next() {
		var cfg domain.ComplianceConfig
		if err := rows.Scan(&cfg.TenantKey, &cfg.DailyLossLimit, &cfg.DailyLossPercent,
			&cfg.IncludeFloating, &cfg.CloseOpenTrades, &cfg.PreventNewTrades, &cfg.NewsLeadMinutes); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
