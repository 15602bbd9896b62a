package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"finora/internal/config"
	"finora/internal/core"
)

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		b, err := f.CreateBackend(ctx, Config{Data: MemoryData, Remote: MemoryRemote})
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		if b.Finance == nil || b.KV == nil || b.Remote == nil {
			t.Fatalf("incomplete backend %+v", b)
		}
	})

	t.Run("sqlite without remote", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "finora.db")
		b, err := f.CreateBackend(ctx, Config{Data: SQLiteData, Remote: NoRemote, SQLiteDBPath: path})
		if err != nil {
			t.Fatal(err)
		}
		if b.Remote != nil {
			t.Fatal("remote should be disabled")
		}
		if err := b.Finance.Save(ctx, "u1", core.FinanceData{}.Normalized()); err != nil {
			t.Fatal(err)
		}
		if err := b.KV.Set(ctx, "k", "v"); err != nil {
			t.Fatal(err)
		}
		if err := b.Close(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("sheets without credentials", func(t *testing.T) {
		_, err := f.CreateBackend(ctx, Config{Data: MemoryData, Remote: SheetsRemote})
		if err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr string
	}{
		{name: "nil", cfg: nil, wantErr: "app config is nil"},
		{name: "memory", cfg: &config.Config{DataBackend: "memory"}},
		{name: "bad data", cfg: &config.Config{DataBackend: "sheets"}, wantErr: "invalid data backend"},
		{name: "bad remote", cfg: &config.Config{DataBackend: "memory", RemoteBackend: "ftp"}, wantErr: "invalid remote backend"},
		{
			name: "sheets",
			cfg: &config.Config{
				DataBackend:              "memory",
				RemoteBackend:            "sheets",
				GoogleSpreadsheetID:      "sheet-1",
				GoogleServiceAccountJSON: "{}",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Remote == "" {
				t.Error("remote should default to none")
			}
		})
	}
}
