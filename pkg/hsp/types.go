package hsp

// The HSP API returns loosely shaped JSON. Every field here is optional on
// the wire - decoding an unexpected payload just leaves zero values behind.

// MetricsRequest is the serviceMetrics query: a station pair plus time, date
// and day-of-week filters.
type MetricsRequest struct {
	FromLoc  string `json:"from_loc"`
	ToLoc    string `json:"to_loc"`
	FromTime string `json:"from_time"`
	ToTime   string `json:"to_time"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Days     string `json:"days"`

	TOCFilter []string `json:"toc_filter,omitempty"`
	Tolerance []string `json:"tolerance,omitempty"`
}

// RouteLabel gives the "FROM->TO" form used on cache metrics rows.
func (r MetricsRequest) RouteLabel() string {
	return r.FromLoc + "->" + r.ToLoc
}

type MetricsResponse struct {
	Services []ServicePattern `json:"Services"`
}

// ServicePattern is one scheduled service matching the metrics query, with
// the identifiers of its concrete running instances.
type ServicePattern struct {
	Attributes ServiceAttributesMetrics `json:"serviceAttributesMetrics"`
}

type ServiceAttributesMetrics struct {
	OriginLocation      string   `json:"origin_location"`
	DestinationLocation string   `json:"destination_location"`
	GBTTDeparture       string   `json:"gbtt_ptd"`
	GBTTArrival         string   `json:"gbtt_pta"`
	TOCCode             string   `json:"toc_code"`
	RIDs                []string `json:"rids"`
}

type DetailsResponse struct {
	Attributes ServiceAttributesDetails `json:"serviceAttributesDetails"`
}

type ServiceAttributesDetails struct {
	RID           string         `json:"rid"`
	TOCCode       string         `json:"toc_code"`
	DateOfService string         `json:"date_of_service"`
	Locations     []CallingPoint `json:"locations"`
}

// CallingPoint is one station visit within a journey. Times are HHMM strings;
// an empty actual time with no cancellation reason is an ambiguous
// cancellation, with a reason a confirmed one.
type CallingPoint struct {
	Location string `json:"location"`

	GBTTDeparture   string `json:"gbtt_ptd"`
	ActualDeparture string `json:"actual_td"`
	GBTTArrival     string `json:"gbtt_pta"`
	ActualArrival   string `json:"actual_ta"`

	CancelReason string `json:"late_canc_reason"`
}
