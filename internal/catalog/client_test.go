package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nutridoc/internal"
	"nutridoc/internal/config"
	"nutridoc/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		FoodAPIToken:         "test",
		FoodAPIBaseURL:       "https://example.test/api/v1",
		FoodAPIRateLimitRPS:  1000,
		FoodAPITimeoutMs:     1000,
		FoodAPILookbackHours: 24,
		OutputDir:            t.TempDir(),
		MatchOKThreshold:     0.90,
		MatchReviewThreshold: 0.72,
		MatchGapThreshold:    0.08,
	}
}

func TestGetFoodsScrollAllWithRetry(t *testing.T) {
	attempt := 0

	client := NewClient(testConfig(t))
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/v1/foods/scroll" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test" {
				t.Fatalf("missing auth header")
			}
			attempt++
			switch attempt {
			case 1:
				return jsonResponse(http.StatusInternalServerError, map[string]any{"error": "boom"}), nil
			case 2:
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
					"foods": []map[string]any{
						{"id": 1, "name": "Lentejas", "group": "legumbres", "nutrients": map[string]any{"energy_kcal": 116, "proteins": 9}},
						{"id": 2, "name": "  "},
					},
					"scrollId": "abc",
				}}), nil
			case 3:
				if r.URL.Query().Get("scrollId") != "abc" {
					t.Fatalf("scrollId not forwarded: %s", r.URL.RawQuery)
				}
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
					"foods":    []map[string]any{{"id": 3, "name": "Quinoa", "aliases": []any{"quinua"}, "nutrients": map[string]any{"calories": "368"}}},
					"scrollId": nil,
				}}), nil
			}
			t.Fatalf("unexpected attempt %d", attempt)
			return nil, nil
		}),
	}

	foods, err := client.GetFoodsScrollAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(foods) != 2 {
		t.Fatalf("len=%d", len(foods))
	}
	if foods[0].Per100g[internal.NutrientCalories] != 116 || foods[0].Per100g[internal.NutrientProtein] != 9 {
		t.Fatalf("nutrients=%v", foods[0].Per100g)
	}
	if foods[1].Per100g[internal.NutrientCalories] != 368 || len(foods[1].Aliases) != 1 {
		t.Fatalf("unexpected food: %+v", foods[1])
	}
}

func TestFetchFailsWithoutToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.FoodAPIToken = ""
	_, err := NewClient(cfg).GetFoodsScrollAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "FOOD_API_TOKEN") {
		t.Fatalf("err=%v", err)
	}
}

func TestFetchStopsOnClientError(t *testing.T) {
	calls := 0
	client := NewClient(testConfig(t))
	client.httpClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusUnauthorized, map[string]any{"error": "nope"}), nil
	})}
	if _, err := client.GetFoodsScrollAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestSyncServiceStoresFoodsAndGroups(t *testing.T) {
	cfg := testConfig(t)
	db, err := storage.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	svc := NewSyncService(db, cfg, nil)
	svc.client.httpClient = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/api/v1/foods/scroll":
			if r.URL.Query().Get("updated_hours") != "" && r.URL.Query().Get("updated_hours") != "24" {
				t.Fatalf("query=%s", r.URL.RawQuery)
			}
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"foods":    []map[string]any{{"id": 7, "name": "Garbanzos", "nutrients": map[string]any{"calories": 164}}},
				"scrollId": nil,
			}}), nil
		case "/api/v1/food-groups/tree":
			return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{"legumbres": []any{"garbanzos"}}}), nil
		}
		t.Fatalf("unexpected path %s", r.URL.Path)
		return nil, nil
	})}

	n, err := svc.InitialSync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("n=%d", n)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "food-groups.json")); err != nil {
		t.Fatal(err)
	}
	if n, err := svc.IncrementalSync(context.Background()); err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}

	m, err := LoadMatcher(db, cfg)
	if err != nil {
		t.Fatal(err)
	}
	per100g, ok := m.Per100g("garbanzos")
	if !ok || per100g[internal.NutrientCalories] != 164 {
		t.Fatalf("per100g=%v ok=%v", per100g, ok)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	r := NewRateLimiter(1)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
