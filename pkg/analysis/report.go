package analysis

import (
	"github.com/trelay/trelay/pkg/histogram"
)

// DirectionSummary is the compact per-direction block kept for frontend
// compatibility.
type DirectionSummary struct {
	Histogram     map[string]float64 `json:"histogram"`
	AvgDelay      float64            `json:"avg_delay"`
	OnTimeCount   int                `json:"on_time_count"`
	ExtremeDelays int                `json:"extreme_delays"`
}

// DirectionPerformance is the full per-direction block: the histogram
// analysis plus cancellation detail and reliability.
type DirectionPerformance struct {
	histogram.Analysis

	CancelledCount      int      `json:"cancelled_count"`
	CancellationReasons []string `json:"cancellation_reasons"`

	// Reliability is the percentage of journeys that produced a delay value
	// rather than a cancellation.
	Reliability float64 `json:"reliability"`
}

// Report is the completed analysis of one route over one date range.
type Report struct {
	Route      string `json:"route"`
	RouteCodes string `json:"route_codes"`
	DateRange  string `json:"date_range"`
	TimeRange  string `json:"time_range"`
	Days       string `json:"days"`

	TotalServices    int `json:"total_services"`
	AnalyzedServices int `json:"analyzed_services"`
	RIDsProcessed    int `json:"rids_processed"`

	DepartureDelays DirectionSummary `json:"departure_delays"`
	ArrivalDelays   DirectionSummary `json:"arrival_delays"`

	DeparturePerformance DirectionPerformance `json:"departure_performance"`
	ArrivalPerformance   DirectionPerformance `json:"arrival_performance"`
}

// ProgressEvent reports incremental analysis progress to an observer.
type ProgressEvent struct {
	Step       string  `json:"step"`
	Message    string  `json:"message"`
	Current    int     `json:"current,omitempty"`
	Total      int     `json:"total,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
}

// ProgressFunc receives progress events. During journey processing it may be
// invoked from multiple goroutines at once.
type ProgressFunc func(ProgressEvent)

const (
	StepInitializing       = "initializing"
	StepFetchingMetrics    = "fetching_metrics"
	StepExtractingRIDs     = "extracting_rids"
	StepProcessingJourneys = "processing_journeys"
	StepGeneratingAnalysis = "generating_analysis"
)
