package domain

// PartitionDescriptor records whether a daily event partition is queryable.
type PartitionDescriptor struct {
	DateSuffix string
	Exists     bool
}

// RawMetricAggregate is one row of per-URL traffic counters returned by the
// analytics warehouse. Rows from overlapping partitions may repeat a URL.
type RawMetricAggregate struct {
	PageLocation          string
	Pageviews             int
	OrganicSessions       int
	EngagedSessions       int
	TotalEngagementTimeMs int64
	TotalSessions         int
}

// ContentMappingEntry is a catalog article keyed by its normalized path pattern.
// Built fresh each run; read-only afterwards.
type ContentMappingEntry struct {
	Pattern                  string
	ArticleID                string
	CourseSlug               string
	Link                     string
	Title                    string
	CurrentPageviews         int
	CurrentOrganicSessions   int
	CurrentEngagedSessions   int
	CurrentAvgEngagementTime float64
}

// MetricsDelta carries the fresh counter values for one article whose metrics
// materially changed since the last sync.
type MetricsDelta struct {
	ArticleID            string
	NewPageviews         int
	NewOrganicSessions   int
	NewEngagedSessions   int
	NewAvgEngagementTime float64
	CourseSlug           string
	TitleExcerpt         string
}

// SyncStatus enumerates terminal pipeline outcomes.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusTimeout SyncStatus = "timeout"
	StatusError   SyncStatus = "error"
	StatusFailed  SyncStatus = "failed"
)

// SyncResult summarizes a single pipeline run for the caller, including how far
// the run got on failure paths.
type SyncResult struct {
	Status          SyncStatus `json:"status"`
	TotalRawRecords int        `json:"total_raw_records"`
	MappedArticles  int        `json:"mapped_articles"`
	UpdatedRecords  int        `json:"updated_records"`
	ElapsedSeconds  float64    `json:"elapsed_seconds"`
	ErrorMessage    string     `json:"error,omitempty"`
}
