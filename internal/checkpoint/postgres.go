package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deckgen/internal/config"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

type Checkpoint struct {
	bun.BaseModel `bun:"table:checkpoints,alias:c"`
	RunID         string    `bun:"run_id,pk"`
	Stage         string    `bun:"stage,pk"`
	Payload       string    `bun:"payload,type:jsonb,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver, pgdriver or lib/pq.
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}
	switch dbConfig.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", dbConfig.DSN)
	case config.DriverPG, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.DSN)}
		if dbConfig.Password != "" {
			opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbConfig.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*Checkpoint)(nil)).IfNotExists().Exec(ctx)
	return err
}

func DropCheckpoints(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Checkpoint)(nil)).IfExists().Exec(ctx)
	return err
}

// PostgresStore keeps checkpoints as jsonb rows keyed by run and stage.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, runID, stage string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s checkpoint: %w", stage, err)
	}
	row := &Checkpoint{RunID: runID, Stage: stage, Payload: string(data), UpdatedAt: time.Now().UTC()}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (run_id, stage) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store %s checkpoint: %w", stage, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, runID, stage string, v interface{}) error {
	var row Checkpoint
	err := s.db.NewSelect().
		Model(&row).
		Where("run_id = ?", runID).
		Where("stage = ?", stage).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s checkpoint: %w", stage, err)
	}
	if err := json.Unmarshal([]byte(row.Payload), v); err != nil {
		return fmt.Errorf("decode %s checkpoint: %w", stage, err)
	}
	return nil
}
