package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/trelay/trelay/pkg/histogram"
	"github.com/trelay/trelay/pkg/hsp"
	"github.com/trelay/trelay/pkg/stations"
)

type fakeAPI struct {
	metrics *hsp.MetricsResponse
	details map[string]*hsp.DetailsResponse

	metricsErr error

	requestLock   sync.Mutex
	detailsCalled []string
}

func (f *fakeAPI) ServiceMetrics(ctx context.Context, request hsp.MetricsRequest) (*hsp.MetricsResponse, error) {
	if f.metricsErr != nil {
		return nil, f.metricsErr
	}

	return f.metrics, nil
}

func (f *fakeAPI) ServiceDetails(ctx context.Context, rid string) (*hsp.DetailsResponse, error) {
	f.requestLock.Lock()
	f.detailsCalled = append(f.detailsCalled, rid)
	f.requestLock.Unlock()

	details, ok := f.details[rid]
	if !ok {
		return nil, &hsp.UpstreamError{Endpoint: "serviceDetails", StatusCode: 404, Body: "unknown rid"}
	}

	return details, nil
}

func emptyLookup(t *testing.T) *stations.Lookup {
	t.Helper()

	lookup, err := stations.Load("")
	if err != nil {
		t.Fatalf("stations.Load failed: %v", err)
	}

	return lookup
}

func journey(points ...hsp.CallingPoint) *hsp.DetailsResponse {
	return &hsp.DetailsResponse{
		Attributes: hsp.ServiceAttributesDetails{Locations: points},
	}
}

var testRequest = hsp.MetricsRequest{
	FromLoc:  "BTN",
	ToLoc:    "VIC",
	FromTime: "0700",
	ToTime:   "0800",
	FromDate: "2024-01-01",
	ToDate:   "2024-01-31",
	Days:     "WEEKDAY",
}

func TestAnalyzeNoMatchingServices(t *testing.T) {
	api := &fakeAPI{metrics: &hsp.MetricsResponse{}}
	analyser := NewAnalyser(api, emptyLookup(t), 1)

	_, err := analyser.Analyze(context.Background(), testRequest, nil)
	if !errors.Is(err, ErrNoMatchingServices) {
		t.Errorf("err = %v, expected ErrNoMatchingServices", err)
	}
}

func TestAnalyzeMetricsFailureIsFatal(t *testing.T) {
	api := &fakeAPI{metricsErr: &hsp.UpstreamError{Endpoint: "serviceMetrics", StatusCode: 503, Body: "unavailable"}}
	analyser := NewAnalyser(api, emptyLookup(t), 1)

	_, err := analyser.Analyze(context.Background(), testRequest, nil)

	var upstreamError *hsp.UpstreamError
	if !errors.As(err, &upstreamError) {
		t.Errorf("err = %v, expected UpstreamError", err)
	}
}

func TestAnalyzeFullPipeline(t *testing.T) {
	api := &fakeAPI{
		metrics: &hsp.MetricsResponse{
			Services: []hsp.ServicePattern{
				{Attributes: hsp.ServiceAttributesMetrics{RIDs: []string{"rid1", "rid2"}}},
				{Attributes: hsp.ServiceAttributesMetrics{RIDs: []string{"rid3", "rid4", "rid5"}}},
			},
		},
		details: map[string]*hsp.DetailsResponse{
			// 3 minutes late out, 6 minutes late in
			"rid1": journey(
				hsp.CallingPoint{Location: "BTN", GBTTDeparture: "0700", ActualDeparture: "0703"},
				hsp.CallingPoint{Location: "VIC", GBTTArrival: "0755", ActualArrival: "0801"},
			),
			// on time both ends
			"rid2": journey(
				hsp.CallingPoint{Location: "BTN", GBTTDeparture: "0715", ActualDeparture: "0715"},
				hsp.CallingPoint{Location: "VIC", GBTTArrival: "0810", ActualArrival: "0810"},
			),
			// cancelled at both ends
			"rid3": journey(
				hsp.CallingPoint{Location: "BTN", GBTTDeparture: "0730", CancelReason: "901"},
				hsp.CallingPoint{Location: "VIC", GBTTArrival: "0825", CancelReason: "901"},
			),
			// journey fetched but neither station present: analysed, no samples
			"rid5": journey(
				hsp.CallingPoint{Location: "PAD", GBTTDeparture: "0700", ActualDeparture: "0700"},
				hsp.CallingPoint{Location: "OXF", GBTTArrival: "0800", ActualArrival: "0800"},
			),
		},
	}

	analyser := NewAnalyser(api, emptyLookup(t), 1)

	report, err := analyser.Analyze(context.Background(), testRequest, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.TotalServices != 2 {
		t.Errorf("total_services = %d, expected 2", report.TotalServices)
	}
	if report.RIDsProcessed != 5 {
		t.Errorf("rids_processed = %d, expected 5", report.RIDsProcessed)
	}
	// rid4 fails upstream and is skipped silently
	if report.AnalyzedServices != 4 {
		t.Errorf("analyzed_services = %d, expected 4", report.AnalyzedServices)
	}

	departure := report.DeparturePerformance
	if departure.Stats.TotalCount != 3 {
		t.Errorf("departure total = %d, expected 2 delays + 1 cancellation", departure.Stats.TotalCount)
	}
	if departure.CancelledCount != 1 || departure.CancellationReasons[0] != "901" {
		t.Errorf("departure cancellations = %d %v, expected 1 with reason 901", departure.CancelledCount, departure.CancellationReasons)
	}

	arrival := report.ArrivalPerformance
	if arrival.Stats.AvgDelay != 3.0 {
		t.Errorf("arrival avg_delay = %v, expected mean of [6, 0] = 3.0", arrival.Stats.AvgDelay)
	}
	if arrival.Histogram[histogram.BandCancelled] != 33.3 {
		t.Errorf("arrival Cancelled = %v, expected 33.3", arrival.Histogram[histogram.BandCancelled])
	}

	// 2 of 3 journeys with any sample produced a delay value
	if departure.Reliability != 66.7 {
		t.Errorf("departure reliability = %v, expected 66.7", departure.Reliability)
	}

	if report.RouteCodes != "BTN → VIC" {
		t.Errorf("route_codes = %q", report.RouteCodes)
	}
	if report.Route != "BTN → VIC" {
		t.Errorf("route = %q, expected raw codes with an empty station table", report.Route)
	}
}

func TestAnalyzeDuplicateRIDsPreserved(t *testing.T) {
	api := &fakeAPI{
		metrics: &hsp.MetricsResponse{
			Services: []hsp.ServicePattern{
				{Attributes: hsp.ServiceAttributesMetrics{RIDs: []string{"rid1", "rid1"}}},
			},
		},
		details: map[string]*hsp.DetailsResponse{
			"rid1": journey(
				hsp.CallingPoint{Location: "BTN", GBTTDeparture: "0700", ActualDeparture: "0702"},
				hsp.CallingPoint{Location: "VIC", GBTTArrival: "0755", ActualArrival: "0757"},
			),
		},
	}

	analyser := NewAnalyser(api, emptyLookup(t), 1)

	report, err := analyser.Analyze(context.Background(), testRequest, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(api.detailsCalled) != 2 {
		t.Errorf("detail lookups = %d, expected duplicates preserved", len(api.detailsCalled))
	}
	if report.AnalyzedServices != 2 {
		t.Errorf("analyzed_services = %d, expected 2", report.AnalyzedServices)
	}
	if report.DeparturePerformance.Stats.TotalCount != 2 {
		t.Errorf("departure total = %d, expected both samples counted", report.DeparturePerformance.Stats.TotalCount)
	}
}

func TestAnalyzeEmptyCallingPointsSkipped(t *testing.T) {
	api := &fakeAPI{
		metrics: &hsp.MetricsResponse{
			Services: []hsp.ServicePattern{
				{Attributes: hsp.ServiceAttributesMetrics{RIDs: []string{"rid1", "rid2"}}},
			},
		},
		details: map[string]*hsp.DetailsResponse{
			"rid1": journey(),
			"rid2": journey(
				hsp.CallingPoint{Location: "BTN", GBTTDeparture: "0700", ActualDeparture: "0701"},
				hsp.CallingPoint{Location: "VIC", GBTTArrival: "0755", ActualArrival: "0756"},
			),
		},
	}

	analyser := NewAnalyser(api, emptyLookup(t), 2)

	report, err := analyser.Analyze(context.Background(), testRequest, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.AnalyzedServices != 1 {
		t.Errorf("analyzed_services = %d, expected the empty journey to be skipped", report.AnalyzedServices)
	}
}

func TestAnalyzeProgressEvents(t *testing.T) {
	api := &fakeAPI{
		metrics: &hsp.MetricsResponse{
			Services: []hsp.ServicePattern{
				{Attributes: hsp.ServiceAttributesMetrics{RIDs: []string{"rid1", "rid2", "rid3"}}},
			},
		},
		details: map[string]*hsp.DetailsResponse{},
	}

	analyser := NewAnalyser(api, emptyLookup(t), 1)

	var eventLock sync.Mutex
	steps := map[string]bool{}
	finalCurrent := 0

	_, err := analyser.Analyze(context.Background(), testRequest, func(event ProgressEvent) {
		eventLock.Lock()
		defer eventLock.Unlock()

		steps[event.Step] = true
		if event.Step == StepProcessingJourneys && event.Current > finalCurrent {
			finalCurrent = event.Current
		}
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	for _, step := range []string{StepInitializing, StepFetchingMetrics, StepExtractingRIDs, StepProcessingJourneys, StepGeneratingAnalysis} {
		if !steps[step] {
			t.Errorf("missing progress step %q", step)
		}
	}

	if finalCurrent != 3 {
		t.Errorf("final progress current = %d, expected 3", finalCurrent)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	api := &fakeAPI{
		metrics: &hsp.MetricsResponse{
			Services: []hsp.ServicePattern{
				{Attributes: hsp.ServiceAttributesMetrics{RIDs: []string{"rid1", "rid2"}}},
			},
		},
		details: map[string]*hsp.DetailsResponse{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	analyser := NewAnalyser(api, emptyLookup(t), 1)

	_, err := analyser.Analyze(ctx, testRequest, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, expected context.Canceled", err)
	}

	if len(api.detailsCalled) != 0 {
		t.Errorf("detail lookups = %d, expected none after cancellation", len(api.detailsCalled))
	}
}
