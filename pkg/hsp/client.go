package hsp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/trelay/trelay/pkg/cache"
	"github.com/trelay/trelay/pkg/config"
	"github.com/trelay/trelay/pkg/util"
)

const endpointMetrics = "serviceMetrics"
const endpointDetails = "serviceDetails"

// Error text stored on metrics rows is bounded
const maxStoredErrorLength = 100

const requestTimeout = 180 * time.Second
const maxRetries = 3

// UpstreamError is a failed call to the HSP API. StatusCode is 0 for
// transport-level failures.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("hsp %s: %s", e.Endpoint, e.Body)
	}

	return fmt.Sprintf("hsp %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client talks to the HSP historical performance API. Both lookups consult
// the bounded request cache before going upstream, and every upstream call
// (success or failure) is recorded as a metrics row. A stored response shares
// its RID with the metrics row for the same call, so evicting a metrics row
// takes the payload row with it.
type Client struct {
	metricsEndpoint string
	detailsEndpoint string

	authorization string

	httpClient *http.Client
	store      *cache.Store
}

func NewClient(cfg *config.Config, store *cache.Store) *Client {
	credentials := cfg.RailCredentials.Email + ":" + cfg.RailCredentials.Password

	return &Client{
		metricsEndpoint: cfg.MetricsEndpoint,
		detailsEndpoint: cfg.DetailsEndpoint,

		authorization: "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)),

		httpClient: &http.Client{Timeout: requestTimeout},
		store:      store,
	}
}

// ServiceMetrics returns the service patterns matching the request filters.
func (c *Client) ServiceMetrics(ctx context.Context, request MetricsRequest) (*MetricsResponse, error) {
	serviceName := fmt.Sprintf("metrics_%s_%s_%s_%s", request.FromLoc, request.ToLoc, request.FromDate, request.ToDate)

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var response MetricsResponse
	if c.cachedResponse(serviceName, &response) {
		return &response, nil
	}

	rid := c.store.GenerateRID()

	responseJSON, err := c.post(ctx, c.metricsEndpoint, endpointMetrics, request.RouteLabel(), rid, requestJSON, func(body []byte) int {
		var decoded MetricsResponse
		json.Unmarshal(body, &decoded)
		return len(decoded.Services)
	})
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(responseJSON, &response); err != nil {
		return nil, err
	}

	c.store.PutServiceRequest(serviceName, requestJSON, responseJSON, rid)

	return &response, nil
}

// ServiceDetails returns the full calling point record for one journey
// instance identifier.
func (c *Client) ServiceDetails(ctx context.Context, rid string) (*DetailsResponse, error) {
	serviceName := "details_" + rid

	requestJSON, err := json.Marshal(map[string]string{"rid": rid})
	if err != nil {
		return nil, err
	}

	var response DetailsResponse
	if c.cachedResponse(serviceName, &response) {
		return &response, nil
	}

	storeRID := c.store.GenerateRID()

	responseJSON, err := c.post(ctx, c.detailsEndpoint, endpointDetails, serviceName, storeRID, requestJSON, func([]byte) int {
		return 1
	})
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(responseJSON, &response); err != nil {
		return nil, err
	}

	c.store.PutServiceRequest(serviceName, requestJSON, responseJSON, storeRID)

	return &response, nil
}

// cachedResponse is the read-through lookup. A storage fault shows up as a
// plain miss.
func (c *Client) cachedResponse(serviceName string, destination any) bool {
	record := c.store.LatestByName(serviceName)
	if record == nil {
		log.Debug().Str("servicename", serviceName).Msg("Cache miss, fetching from API")
		return false
	}

	if err := json.Unmarshal(record.Response, destination); err != nil {
		log.Warn().Err(err).Str("servicename", serviceName).Msg("Discarding undecodable cached response")
		return false
	}

	log.Debug().Str("servicename", serviceName).Msg("Cache hit")

	return true
}

// post sends one authenticated request, retrying transport failures with
// exponential backoff, and records a metrics row under rid for the outcome.
// The caller reuses rid when storing the response payload, keeping the two
// rows linked for eviction. servicesCount derives the row's services_count
// from a successful body.
func (c *Client) post(ctx context.Context, url string, endpoint string, route string, rid string, requestJSON []byte, servicesCount func([]byte) int) ([]byte, error) {
	startTime := time.Now()

	metrics := cache.RequestMetrics{
		Endpoint:    endpoint,
		Route:       route,
		RequestSize: len(requestJSON),
	}

	var responseJSON []byte
	var statusCode int

	operation := func() error {
		request, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestJSON))
		if err != nil {
			return backoff.Permanent(err)
		}

		request.Header.Set("Authorization", c.authorization)
		request.Header.Set("Content-Type", "application/json")

		response, err := c.httpClient.Do(request)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer response.Body.Close()

		statusCode = response.StatusCode
		responseJSON, err = io.ReadAll(response.Body)
		if err != nil {
			return err
		}

		// Retrying a client error would just repeat it
		if statusCode >= 500 {
			return fmt.Errorf("HTTP %d", statusCode)
		}

		return nil
	}

	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	err := backoff.Retry(operation, retryPolicy)

	metrics.DurationMS = time.Since(startTime).Milliseconds()
	metrics.StatusCode = statusCode

	if err != nil {
		// A retried 5xx leaves the last body behind; surface it rather than
		// the backoff wrapper text
		body := err.Error()
		if len(responseJSON) > 0 {
			body = string(responseJSON)
		}

		metrics.ResponseSize = len(responseJSON)
		metrics.Error = util.TrimString(body, maxStoredErrorLength)
		c.store.PutMetrics(rid, metrics)

		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: statusCode, Body: util.TrimString(body, maxStoredErrorLength)}
	}

	if statusCode != http.StatusOK {
		metrics.ResponseSize = len(responseJSON)
		metrics.Error = util.TrimString(fmt.Sprintf("HTTP %d: %s", statusCode, responseJSON), maxStoredErrorLength)
		c.store.PutMetrics(rid, metrics)

		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: statusCode, Body: util.TrimString(string(responseJSON), maxStoredErrorLength)}
	}

	metrics.ResponseSize = len(responseJSON)
	metrics.ServicesCount = servicesCount(responseJSON)
	c.store.PutMetrics(rid, metrics)

	return responseJSON, nil
}
