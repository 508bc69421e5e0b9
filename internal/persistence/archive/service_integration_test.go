//go:build integration
// +build integration

package archive_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"apyscope/internal/persistence/archive"
	"apyscope/pkg/apy"
)

func requireConn(t *testing.T) sqlx.SqlConn {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	conn := sqlx.NewSqlConn("pgx", dsn)

	ddl, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_apy_archive.sql"))
	require.NoError(t, err)
	_, err = conn.ExecCtx(context.Background(), string(ddl))
	require.NoError(t, err, "apply migration")
	return conn
}

func TestArchiveRoundTrip(t *testing.T) {
	conn := requireConn(t)
	svc := archive.NewService(archive.Config{SQLConn: conn})
	require.NotNil(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	source := fmt.Sprintf("integration-%d", time.Now().UnixNano())
	defer func() {
		_, _ = conn.ExecCtx(context.Background(), `DELETE FROM public.apy_rates WHERE source = $1`, source)
		_, _ = conn.ExecCtx(context.Background(), `DELETE FROM public.apy_markets WHERE source = $1`, source)
	}()

	err := svc.ArchiveMarkets(ctx, source, []apy.Market{{
		ID: "0xusdc", Name: "Aave interest bearing USDC", TotalValueLockedUSD: decimal.RequireFromString("1234.5"),
	}})
	require.NoError(t, err)

	rows := []apy.RateSnapshot{
		{SnapshotID: "s1", RateID: "r1", MarketID: "0xusdc", Timestamp: 1672531200, Rate: decimal.NewNullDecimal(decimal.RequireFromString("1.5")), Side: "LENDER", Type: "VARIABLE"},
		{SnapshotID: "s2", MarketID: "0xusdc", Timestamp: 1672617600},
	}
	require.NoError(t, svc.ArchiveRates(ctx, source, rows))
	// Upserts are idempotent.
	require.NoError(t, svc.ArchiveRates(ctx, source, rows))

	n, err := svc.CountRates(ctx, source)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
