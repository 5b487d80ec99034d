package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/core/types"
	"gstledger/internal/domain/tax"
)

func defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	v := defaults()
	v.Set("storage.driver", "memory")
	v.Set("seller.state_code", "27")

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 24*time.Hour, cfg.HTTP.IdempotencyTTL)
	assert.Equal(t, "60-M", cfg.HTTP.ReportRateLimit)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, tax.StatusGST, cfg.Seller.Status)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), cfg.BooksStart)
	assert.Equal(t, 100, cfg.Worker.BatchSize)
	assert.Equal(t, time.Minute, cfg.Worker.Backoff)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.App.Development())
	assert.Equal(t, int32(25), cfg.Database.Pool().MaxConns)
}

func TestFromViper_Validation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"postgres needs url", map[string]any{}, "database.url"},
		{"unknown driver", map[string]any{"storage.driver": "mongo"}, "unknown storage.driver"},
		{"bad state", map[string]any{"storage.driver": "memory", "seller.state_code": "99"}, "seller.state_code"},
		{"bad gstin", map[string]any{"storage.driver": "memory", "seller.gstin": "27AAPFU0939F1ZX"}, "seller.gstin"},
		{"bad status", map[string]any{"storage.driver": "memory", "seller.gst_status": "maybe"}, "seller.gst_status"},
		{"bad books start", map[string]any{"storage.driver": "memory", "books_start": "01/04/2024"}, "books_start"},
		{
			"state does not match gstin",
			map[string]any{"storage.driver": "memory", "seller.gstin": "27AAPFU0939F1ZV", "seller.state_code": "29"},
			"does not match seller.gstin",
		},
		{
			"registered seller needs state",
			map[string]any{"storage.driver": "memory"},
			"seller.state_code is required",
		},
		{
			"registered seller needs gstin",
			map[string]any{"database.url": "postgres://localhost/gst"},
			"seller.gstin is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := defaults()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := fromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromViper_SellerStateFromGSTIN(t *testing.T) {
	v := defaults()
	v.Set("storage.driver", "memory")
	v.Set("seller.gstin", "27AAPFU0939F1ZV")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "27", cfg.Seller.StateCode)

	split := tax.DetermineForSeller(
		tax.Seller{StateCode: cfg.Seller.StateCode, Status: cfg.Seller.Status},
		types.MustMoney("1000"), decimal.NewFromInt(18), "27", tax.StatusGST)
	assert.Equal(t, tax.SupplyIntraState, split.Kind)
	assert.Equal(t, "90.00", types.FormatMoney(split.CGST))
	assert.Equal(t, "90.00", types.FormatMoney(split.SGST))
	assert.True(t, split.IGST.IsZero())
}

func TestFromViper_UnregisteredSellerNeedsNoState(t *testing.T) {
	v := defaults()
	v.Set("storage.driver", "memory")
	v.Set("seller.gst_status", "Non-GST")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Empty(t, cfg.Seller.StateCode)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
seller:
  name: Shree Ganesh Traders
  gstin: 27aapfu0939f1zv
  state_code: "27"
http:
  port: "9090"
`), 0o600))

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("WORKER_BATCH_SIZE", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HTTP.Port, "environment wins over file")
	assert.Equal(t, 10, cfg.Worker.BatchSize)
	assert.Equal(t, "Shree Ganesh Traders", cfg.Seller.Name)
	assert.Equal(t, "27AAPFU0939F1ZV", cfg.Seller.GSTIN)
	assert.Equal(t, "27", cfg.Seller.StateCode)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
