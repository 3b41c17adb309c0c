package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nutridoc/internal"
	"nutridoc/internal/config"
	"nutridoc/internal/util"
)

const maxAttempts = 5

// Client talks to the reference food database. Responses use a
// {success, message, errors, data} envelope.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Foods    []map[string]any `json:"foods"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

// Nutrient names used by the food API that differ from ours.
var apiNutrientNames = map[string]string{
	"energy_kcal":   internal.NutrientCalories,
	"kcal":          internal.NutrientCalories,
	"proteins":      internal.NutrientProtein,
	"carbohydrates": internal.NutrientCarbs,
	"fats":          internal.NutrientFat,
	"sugars":        internal.NutrientSugar,
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FoodAPITimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.FoodAPIRateLimitRPS),
	}
}

func (c *Client) GetFoodsScrollAll(ctx context.Context) ([]internal.FoodRecord, error) {
	return c.getFoodsScroll(ctx, map[string]string{})
}

// GetFoodsUpdatedSince fetches foods changed in the last hours.
func (c *Client) GetFoodsUpdatedSince(ctx context.Context, hours int) ([]internal.FoodRecord, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("invalid lookback: %d hours", hours)
	}
	return c.getFoodsScroll(ctx, map[string]string{"updated_hours": strconv.Itoa(hours)})
}

func (c *Client) GetFoodGroups(ctx context.Context) (map[string]any, error) {
	body, err := c.fetchJSON(ctx, "food-groups/tree", map[string]string{})
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getFoodsScroll(ctx context.Context, params map[string]string) ([]internal.FoodRecord, error) {
	all := make([]internal.FoodRecord, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "foods/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode foods page: %w", err)
		}

		for _, raw := range payload.Foods {
			food, err := toFoodRecord(raw)
			if err != nil {
				continue
			}
			all = append(all, food)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Foods) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.FoodAPIToken) == "" {
		return nil, errors.New("missing FOOD_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.FoodAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.FoodAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = fmt.Errorf("food api status %d", resp.StatusCode)
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("food api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("food api unsuccessful: %s %s", apiResp.Message, string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("food api request failed")
	}
	return nil, lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toFoodRecord(raw map[string]any) (internal.FoodRecord, error) {
	name, _ := raw["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return internal.FoodRecord{}, errors.New("empty name")
	}

	id, ok := toInt(raw["id"])
	if !ok {
		return internal.FoodRecord{}, errors.New("missing id")
	}

	rawJSON, _ := json.Marshal(raw)
	food := internal.FoodRecord{
		ID:      id,
		Name:    name,
		RawJSON: string(rawJSON),
	}
	food.SyncUID = toStringPtr(raw["syncUid"])
	food.FoodGroup = toStringPtr(raw["group"])
	food.UpdatedAt = toStringPtr(raw["updatedAt"])
	food.Aliases = toStringSlice(raw["aliases"])
	food.Per100g = toNutrients(raw["nutrients"])

	return food, nil
}

func toNutrients(v any) map[string]float64 {
	out := map[string]float64{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, value := range m {
		key = strings.ToLower(strings.TrimSpace(key))
		if mapped, ok := apiNutrientNames[key]; ok {
			key = mapped
		}
		if f := toFloatPtr(value); f != nil {
			out[key] = *f
		}
	}
	return out
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func toFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		if f, ok := util.ParseNumber(t); ok {
			return &f
		}
	}
	return nil
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
