package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, maxSizeMB int) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), maxSizeMB)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestGenerateRID(t *testing.T) {
	store := newTestStore(t, 300)

	first := store.GenerateRID()
	second := store.GenerateRID()

	if !strings.HasPrefix(first, "RID_") || len(first) != len("RID_")+8 {
		t.Errorf("unexpected RID format: %q", first)
	}
	if first == second {
		t.Errorf("expected unique RIDs, got %q twice", first)
	}
}

func TestPutAndGetMetrics(t *testing.T) {
	store := newTestStore(t, 300)

	rid := store.GenerateRID()
	store.PutMetrics(rid, RequestMetrics{
		DurationMS:    1200,
		Endpoint:      "serviceMetrics",
		StatusCode:    200,
		RequestSize:   150,
		ResponseSize:  32000,
		Route:         "BTN->VIC",
		ServicesCount: 12,
	})

	metrics := store.MetricsByRID(rid)
	if metrics == nil {
		t.Fatal("expected metrics row, got nil")
	}
	if metrics.Endpoint != "serviceMetrics" || metrics.StatusCode != 200 || metrics.Route != "BTN->VIC" {
		t.Errorf("unexpected metrics row: %+v", metrics)
	}

	if store.MetricsByRID("RID_missing1") != nil {
		t.Error("expected nil for unknown RID")
	}

	// Replacement, not duplication
	store.PutMetrics(rid, RequestMetrics{Endpoint: "serviceDetails", StatusCode: 500})
	metrics = store.MetricsByRID(rid)
	if metrics.Endpoint != "serviceDetails" || metrics.StatusCode != 500 {
		t.Errorf("expected replaced metrics row, got %+v", metrics)
	}

	if count := len(store.AllMetrics()); count != 1 {
		t.Errorf("expected 1 metrics row, got %d", count)
	}
}

func TestLatestByNameNewestWins(t *testing.T) {
	store := newTestStore(t, 300)

	name := "metrics_BTN_VIC_2024-01-01_2024-01-31"

	store.PutServiceRequest(name, []byte(`{"attempt":1}`), []byte(`{"Services":[]}`), store.GenerateRID())
	store.PutServiceRequest(name, []byte(`{"attempt":2}`), []byte(`{"Services":[{"serviceAttributesMetrics":{}}]}`), store.GenerateRID())

	record := store.LatestByName(name)
	if record == nil {
		t.Fatal("expected cached record, got nil")
	}

	var request struct {
		Attempt int `json:"attempt"`
	}
	if err := json.Unmarshal(record.Request, &request); err != nil {
		t.Fatalf("failed to decode stored request: %v", err)
	}
	if request.Attempt != 2 {
		t.Errorf("attempt = %d, expected the most recent write (2)", request.Attempt)
	}

	if store.LatestByName("metrics_XXX_YYY_2024-01-01_2024-01-31") != nil {
		t.Error("expected nil for unknown service name")
	}
}

func TestListServicesAndSearch(t *testing.T) {
	store := newTestStore(t, 300)

	request := []byte(`{"from_loc":"BTN","to_loc":"VIC","from_date":"2024-01-01"}`)
	store.PutServiceRequest("metrics_BTN_VIC_2024-01-01_2024-01-31", request, []byte(`{}`), store.GenerateRID())
	store.PutServiceRequest("metrics_BTN_VIC_2024-01-01_2024-01-31", request, []byte(`{}`), store.GenerateRID())
	store.PutServiceRequest("details_201607294210077", []byte(`{"rid":"201607294210077"}`), []byte(`{}`), store.GenerateRID())

	listings := store.ListServices()
	if len(listings) != 2 {
		t.Fatalf("expected 2 distinct service names, got %d", len(listings))
	}
	if listings[0].ServiceName != "details_201607294210077" || listings[0].Records != 1 {
		t.Errorf("unexpected first listing: %+v", listings[0])
	}
	if listings[1].Records != 2 {
		t.Errorf("expected 2 records for the metrics name, got %d", listings[1].Records)
	}

	results := store.SearchByRoute("BTN", "VIC")
	if len(results) != 2 {
		t.Errorf("expected 2 search results, got %d", len(results))
	}
	if len(store.SearchByRoute("BTN", "PAD")) != 0 {
		t.Error("expected no results for an unknown route")
	}
}

func TestSizeLimitEviction(t *testing.T) {
	store := newTestStore(t, 1)

	// Fill well past the 1 MB ceiling
	payload := []byte(`{"filler":"` + strings.Repeat("x", 50*1024) + `"}`)

	var rids []string
	for i := 0; i < 60; i++ {
		rid := store.GenerateRID()
		rids = append(rids, rid)

		store.PutMetrics(rid, RequestMetrics{Endpoint: "serviceDetails", StatusCode: 200, Route: fmt.Sprintf("details_%03d", i)})
		store.PutServiceRequest(fmt.Sprintf("details_%03d", i), []byte(`{}`), payload, rid)
	}

	// Each subsequent write evicts another oldest-20% batch until the store
	// is back under its ceiling
	for i := 0; i < 20; i++ {
		store.PutMetrics(store.GenerateRID(), RequestMetrics{Endpoint: "serviceMetrics"})
	}

	stats := store.Stats()
	if stats.TotalCacheSizeBytes > 1024*1024 {
		t.Errorf("cache size %d still above the 1 MB ceiling after eviction", stats.TotalCacheSizeBytes)
	}

	if store.MetricsByRID(rids[0]) != nil {
		t.Error("expected the oldest metrics row to be evicted")
	}
	if store.LatestByName("details_000") != nil {
		t.Error("expected the oldest service request rows to be evicted")
	}

	// Newest rows survive
	if store.LatestByName("details_059") == nil {
		t.Error("expected the newest service request row to survive eviction")
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t, 300)

	rid := store.GenerateRID()
	store.PutMetrics(rid, RequestMetrics{Endpoint: "serviceMetrics"})
	store.PutServiceRequest("metrics_BTN_VIC_2024-01-01_2024-01-31", []byte(`{}`), []byte(`{}`), rid)

	stats := store.Stats()
	if stats.MetricsCount != 1 || stats.ServiceRequestsCount != 1 {
		t.Errorf("counts = %d/%d, expected 1/1", stats.MetricsCount, stats.ServiceRequestsCount)
	}
	if stats.RecentMetrics24h != 1 {
		t.Errorf("recent_metrics_24h = %d, expected 1", stats.RecentMetrics24h)
	}
	if stats.TotalCacheSizeBytes <= 0 {
		t.Error("expected a non-zero database size")
	}
	if stats.MaxCacheSizeMB != 300 {
		t.Errorf("max_cache_size_mb = %v, expected 300", stats.MaxCacheSizeMB)
	}
	if stats.StorageType != "SQLite" {
		t.Errorf("storage_type = %q, expected SQLite", stats.StorageType)
	}
}
