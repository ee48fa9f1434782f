package pipeline

import (
	"context"
	"testing"

	"github.com/eamazon/datawarp-v3.1/internal/mapping"
)

func TestLoadConfig_DefaultsForNewPipeline(t *testing.T) {
	repo := newFakeRepo()
	cfg, err := LoadConfig(context.Background(), repo, "fresh")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "fresh" {
		t.Fatalf("unexpected name: %s", cfg.Name)
	}
	if cfg.ReloadLast != DefaultReloadLast {
		t.Fatalf("expected default reload window, got %d", cfg.ReloadLast)
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()

	cfg, _ := LoadConfig(ctx, repo, "workforce")
	cfg.SourceURL = "https://digital.example.org/pubs/workforce"
	cfg.FilePatterns = []string{"staff group"}
	cfg.TablePrefix = "wf_"
	m, _ := mapping.Resolve(nil, "wf_staff", []mapping.Column{{Name: "org_code", Type: "text"}})
	cfg.SetMapping("staff", m)
	cfg.MarkPeriodLoaded("2024-03")
	cfg.MarkPeriodLoaded("2024-02")
	cfg.MarkPeriodLoaded("2024-03")

	if err := cfg.Save(ctx, repo); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadConfig(ctx, repo, "workforce")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.SourceURL != cfg.SourceURL || got.TablePrefix != "wf_" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if len(got.LoadedPeriods) != 2 || got.LoadedPeriods[0] != "2024-02" {
		t.Fatalf("unexpected loaded periods: %v", got.LoadedPeriods)
	}
	if got.Mapping("staff") == nil || got.Mapping("staff").TableName != "wf_staff" {
		t.Fatalf("mapping lost in round trip: %+v", got.Mapping("staff"))
	}
}

func TestConfig_ShouldFetch(t *testing.T) {
	cfg := &Config{Name: "t", ReloadLast: 2}
	for _, p := range []string{"2024-01", "2024-02", "2024-03"} {
		cfg.MarkPeriodLoaded(p)
	}

	if !cfg.ShouldFetch("2024-04") {
		t.Fatal("new period must be fetched")
	}
	if !cfg.ShouldFetch("2024-03") || !cfg.ShouldFetch("2024-02") {
		t.Fatal("recent periods must be re-fetched for revisions")
	}
	if cfg.ShouldFetch("2024-01") {
		t.Fatal("old period must not be re-fetched")
	}

	cfg.ReloadLast = -1
	if cfg.ShouldFetch("2024-03") {
		t.Fatal("disabled reload window must skip loaded periods")
	}
}

func TestConfig_TableName(t *testing.T) {
	cfg := &Config{TablePrefix: "wf_"}
	if got := cfg.TableName("Staff in post (FTE)"); got != "wf_staff_in_post_fte" {
		t.Fatalf("unexpected table name: %s", got)
	}
}
