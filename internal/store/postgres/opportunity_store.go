package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. Legs
// and stakes are stored as JSONB next to the scalar columns used for listing.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, event_name, start_time, sport, league, kind,
	market_type, line, arb_percentage, profit_percentage, guaranteed_profit,
	bankroll, freshness_score, is_live, outcomes, stakes, detected_at`

const oppInsert = `
	INSERT INTO arb_opportunities (
		id, event_name, start_time, sport, league, kind,
		market_type, line, arb_percentage, profit_percentage, guaranteed_profit,
		bankroll, freshness_score, is_live, outcomes, stakes, detected_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17
	)
	ON CONFLICT (id) DO NOTHING`

// InsertBatch stores all opportunities in a single round trip. Rows whose ID
// already exists are left untouched.
func (s *OpportunityStore) InsertBatch(ctx context.Context, opps []domain.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, opp := range opps {
		args, err := oppArgs(opp)
		if err != nil {
			return err
		}
		batch.Queue(oppInsert, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, opp := range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
		}
	}
	return nil
}

func oppArgs(opp domain.ArbitrageOpportunity) ([]any, error) {
	outcomes, err := json.Marshal(opp.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal outcomes %s: %w", opp.ID, err)
	}
	stakes, err := json.Marshal(opp.Stakes)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal stakes %s: %w", opp.ID, err)
	}
	return []any{
		opp.ID, opp.EventName, opp.StartTime, string(opp.Sport), opp.League, string(opp.Kind),
		opp.MarketType, opp.Line, opp.ArbPercentage, opp.ProfitPercentage, opp.GuaranteedProfit,
		opp.Bankroll, opp.FreshnessScore, opp.IsLive, outcomes, stakes, opp.DetectedAt,
	}, nil
}

// ListRecent returns stored opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ArbitrageOpportunity, error) {
	base := `SELECT ` + oppSelectCols + ` FROM arb_opportunities WHERE 1=1`
	var args []any
	if opts.Sport != "" {
		base += " AND sport = $1"
		args = append(args, string(opts.Sport))
	}
	query, args := listQuery(base, "detected_at", opts, args)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities rows: %w", err)
	}
	return opps, nil
}

// GetByID returns a single opportunity or domain.ErrNotFound.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.ArbitrageOpportunity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+oppSelectCols+` FROM arb_opportunities WHERE id = $1`, id)
	opp, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ArbitrageOpportunity{}, domain.ErrNotFound
	}
	return opp, err
}

func scanOpportunity(row pgx.Row) (domain.ArbitrageOpportunity, error) {
	var (
		opp             domain.ArbitrageOpportunity
		sport, kind     string
		start           *time.Time
		outcomes, stake []byte
	)
	if err := row.Scan(
		&opp.ID, &opp.EventName, &start, &sport, &opp.League, &kind,
		&opp.MarketType, &opp.Line, &opp.ArbPercentage, &opp.ProfitPercentage, &opp.GuaranteedProfit,
		&opp.Bankroll, &opp.FreshnessScore, &opp.IsLive, &outcomes, &stake, &opp.DetectedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return opp, err
		}
		return opp, fmt.Errorf("postgres: scan opportunity: %w", err)
	}

	opp.StartTime = start
	opp.Sport = domain.Sport(sport)
	opp.Kind = domain.OpportunityKind(kind)
	if err := json.Unmarshal(outcomes, &opp.Outcomes); err != nil {
		return opp, fmt.Errorf("postgres: unmarshal outcomes %s: %w", opp.ID, err)
	}
	if err := json.Unmarshal(stake, &opp.Stakes); err != nil {
		return opp, fmt.Errorf("postgres: unmarshal stakes %s: %w", opp.ID, err)
	}
	return opp, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
