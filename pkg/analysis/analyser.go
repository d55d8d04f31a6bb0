package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/trelay/trelay/pkg/delays"
	"github.com/trelay/trelay/pkg/histogram"
	"github.com/trelay/trelay/pkg/hsp"
	"github.com/trelay/trelay/pkg/stations"
)

// ErrNoMatchingServices means the metrics lookup succeeded but matched zero
// service patterns. Not retried.
var ErrNoMatchingServices = errors.New("no services found for the specified route and date range")

// ServiceAPI is the upstream surface the analyser needs. *hsp.Client
// satisfies it.
type ServiceAPI interface {
	ServiceMetrics(ctx context.Context, request hsp.MetricsRequest) (*hsp.MetricsResponse, error)
	ServiceDetails(ctx context.Context, rid string) (*hsp.DetailsResponse, error)
}

// Analyser runs the journey analysis pipeline: fetch matching service
// patterns, expand them into journey identifiers, look each journey up, and
// fold the per-journey station pair delays into a bucketed performance
// report.
type Analyser struct {
	api          ServiceAPI
	stationNames *stations.Lookup

	// fanout bounds concurrent detail lookups. 1 processes journeys
	// sequentially.
	fanout int
}

func NewAnalyser(api ServiceAPI, stationNames *stations.Lookup, fanout int) *Analyser {
	if fanout < 1 {
		fanout = 1
	}

	return &Analyser{
		api:          api,
		stationNames: stationNames,
		fanout:       fanout,
	}
}

// Analyze produces the delay report for one route and date range. onProgress
// may be nil. Cancelling ctx stops new detail lookups promptly; lookups
// already in flight are left to finish.
func (a *Analyser) Analyze(ctx context.Context, request hsp.MetricsRequest, onProgress ProgressFunc) (*Report, error) {
	emit := func(event ProgressEvent) {
		if onProgress != nil {
			onProgress(event)
		}
	}

	emit(ProgressEvent{Step: StepInitializing, Message: "Starting journey analysis"})

	log.Info().
		Str("route", request.RouteLabel()).
		Str("dates", request.FromDate+" to "+request.ToDate).
		Str("times", request.FromTime+" to "+request.ToTime).
		Str("days", request.Days).
		Msg("Journey analysis started")

	emit(ProgressEvent{Step: StepFetchingMetrics, Message: "Fetching service metrics"})

	metrics, err := a.api.ServiceMetrics(ctx, request)
	if err != nil {
		return nil, err
	}

	services := metrics.Services
	if len(services) == 0 {
		return nil, ErrNoMatchingServices
	}

	emit(ProgressEvent{
		Step:    StepExtractingRIDs,
		Message: fmt.Sprintf("Found %d service patterns to analyse", len(services)),
	})

	// Pattern order then within-pattern order, duplicates preserved
	var rids []string
	for _, service := range services {
		rids = append(rids, service.Attributes.RIDs...)
	}

	log.Info().Int("patterns", len(services)).Int("rids", len(rids)).Msg("Extracted journey identifiers")

	emit(ProgressEvent{
		Step:    StepProcessingJourneys,
		Message: fmt.Sprintf("Processing %d individual journeys", len(rids)),
		Total:   len(rids),
	})

	results := a.fetchJourneys(ctx, request, rids, emit)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	emit(ProgressEvent{Step: StepGeneratingAnalysis, Message: "Generating analysis results"})

	report := a.buildReport(request, len(services), len(rids), results)

	log.Info().
		Int("analysed", report.AnalyzedServices).
		Float64("avgdeparturedelay", report.DeparturePerformance.Stats.AvgDelay).
		Float64("avgarrivaldelay", report.ArrivalPerformance.Stats.AvgDelay).
		Float64("departurereliability", report.DeparturePerformance.Reliability).
		Float64("arrivalreliability", report.ArrivalPerformance.Reliability).
		Msg("Journey analysis completed")

	return report, nil
}

// fetchJourneys looks up every journey identifier with bounded concurrency.
// Failed lookups and journeys with no calling points come back nil and are
// skipped by the fold.
func (a *Analyser) fetchJourneys(ctx context.Context, request hsp.MetricsRequest, rids []string, emit ProgressFunc) []*delays.PairResult {
	progressInterval := len(rids) / 20
	if progressInterval < 1 {
		progressInterval = 1
	}

	var completed atomic.Int64

	p := pool.NewWithResults[*delays.PairResult]().WithMaxGoroutines(a.fanout)

	for _, rid := range rids {
		p.Go(func() *delays.PairResult {
			defer func() {
				done := int(completed.Add(1))
				if done%progressInterval == 0 || done == len(rids) {
					emit(ProgressEvent{
						Step:       StepProcessingJourneys,
						Message:    fmt.Sprintf("Processed %d/%d journeys", done, len(rids)),
						Current:    done,
						Total:      len(rids),
						Percentage: float64(done) / float64(len(rids)) * 100,
					})
				}
			}()

			if ctx.Err() != nil {
				return nil
			}

			details, err := a.api.ServiceDetails(ctx, rid)
			if err != nil {
				log.Debug().Err(err).Str("rid", rid).Msg("Skipping journey with failed detail lookup")
				return nil
			}

			locations := details.Attributes.Locations
			if len(locations) == 0 {
				log.Debug().Str("rid", rid).Msg("Skipping journey with no calling points")
				return nil
			}

			result := delays.ExtractStationPair(locations, request.FromLoc, request.ToLoc)

			return &result
		})
	}

	return p.Wait()
}

func (a *Analyser) buildReport(request hsp.MetricsRequest, totalServices int, ridsProcessed int, results []*delays.PairResult) *Report {
	var departureDelays, arrivalDelays []int
	var cancelledDepartures, cancelledArrivals int
	var departureReasons, arrivalReasons []string
	analysedServices := 0

	for _, result := range results {
		if result == nil {
			continue
		}

		analysedServices++

		switch result.DepartureStatus {
		case delays.StatusKnown:
			departureDelays = append(departureDelays, result.DepartureDelay)
		case delays.StatusCancelled:
			cancelledDepartures++
			departureReasons = append(departureReasons, result.DepartureCancelReason)
		}

		switch result.ArrivalStatus {
		case delays.StatusKnown:
			arrivalDelays = append(arrivalDelays, result.ArrivalDelay)
		case delays.StatusCancelled:
			cancelledArrivals++
			arrivalReasons = append(arrivalReasons, result.ArrivalCancelReason)
		}
	}

	departureAnalysis := histogram.Aggregate(departureDelays, cancelledDepartures)
	arrivalAnalysis := histogram.Aggregate(arrivalDelays, cancelledArrivals)

	return &Report{
		Route:      fmt.Sprintf("%s → %s", a.stationNames.Name(request.FromLoc), a.stationNames.Name(request.ToLoc)),
		RouteCodes: fmt.Sprintf("%s → %s", request.FromLoc, request.ToLoc),
		DateRange:  fmt.Sprintf("%s to %s", request.FromDate, request.ToDate),
		TimeRange:  fmt.Sprintf("%s to %s", request.FromTime, request.ToTime),
		Days:       request.Days,

		TotalServices:    totalServices,
		AnalyzedServices: analysedServices,
		RIDsProcessed:    ridsProcessed,

		DepartureDelays: directionSummary(departureAnalysis),
		ArrivalDelays:   directionSummary(arrivalAnalysis),

		DeparturePerformance: DirectionPerformance{
			Analysis:            departureAnalysis,
			CancelledCount:      cancelledDepartures,
			CancellationReasons: departureReasons,
			Reliability:         reliability(len(departureDelays), cancelledDepartures),
		},
		ArrivalPerformance: DirectionPerformance{
			Analysis:            arrivalAnalysis,
			CancelledCount:      cancelledArrivals,
			CancellationReasons: arrivalReasons,
			Reliability:         reliability(len(arrivalDelays), cancelledArrivals),
		},
	}
}

func directionSummary(analysis histogram.Analysis) DirectionSummary {
	return DirectionSummary{
		Histogram:     analysis.Histogram,
		AvgDelay:      analysis.Stats.AvgDelay,
		OnTimeCount:   analysis.Stats.OnTimeCount,
		ExtremeDelays: analysis.Stats.ExtremeDelays,
	}
}

func reliability(delayCount int, cancelledCount int) float64 {
	total := delayCount + cancelledCount
	if total == 0 {
		return 0
	}

	return math.Round(float64(delayCount)/float64(total)*1000) / 10
}
