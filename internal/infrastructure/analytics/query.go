package analytics

import (
	"fmt"
	"strings"

	"TrafficSync/internal/ports"
)

// buildAggregationQuery renders the tier's aggregation SQL: per-partition
// event selects stitched with UNION ALL, grouped by page location. The strict
// path filter is dropped for the cheapest tier to keep the query trivial.
func buildAggregationQuery(project, dataset, host, section string, q ports.AnalyticsQuery) string {
	selects := make([]string, 0, len(q.Partitions))
	for _, suffix := range q.Partitions {
		selects = append(selects, partitionSelect(project, dataset, host, section, suffix))
	}

	var sb strings.Builder
	sb.WriteString("WITH combined_events AS (\n")
	sb.WriteString(strings.Join(selects, "\nUNION ALL\n"))
	sb.WriteString("\n)\n")
	sb.WriteString(`SELECT
    page_location,
    COUNTIF(event_name = 'page_view') AS pageviews,
    COUNT(DISTINCT IF(traffic_medium = 'organic', session_id, NULL)) AS organic_sessions,
    COUNT(DISTINCT IF(event_name = 'user_engagement', session_id, NULL)) AS engaged_sessions,
    SUM(engagement_time_msec) AS total_engagement_time_msec,
    COUNT(DISTINCT session_id) AS total_sessions
FROM combined_events
WHERE page_location IS NOT NULL`)

	if q.PathFilter {
		sb.WriteString("\n    AND REGEXP_CONTAINS(page_location, r'")
		sb.WriteString(pathPattern(host, section))
		sb.WriteString("')")
	}

	sb.WriteString("\nGROUP BY page_location\nHAVING pageviews >= 1\nORDER BY pageviews DESC")

	if q.RowLimit > 0 {
		fmt.Fprintf(&sb, "\nLIMIT %d", q.RowLimit)
	}

	return sb.String()
}

func partitionSelect(project, dataset, host, section, suffix string) string {
	return fmt.Sprintf(`SELECT
    (SELECT value.string_value FROM UNNEST(event_params) WHERE key = 'page_location') AS page_location,
    CONCAT(user_pseudo_id, '-', (SELECT value.int_value FROM UNNEST(event_params) WHERE key = 'ga_session_id')) AS session_id,
    traffic_source.medium AS traffic_medium,
    COALESCE((SELECT value.int_value FROM UNNEST(event_params) WHERE key = 'engagement_time_msec'), 0) AS engagement_time_msec,
    event_name
FROM `+"`%s.%s.events_%s`"+`
WHERE (SELECT value.string_value FROM UNNEST(event_params) WHERE key = 'page_location') LIKE '%%%s%%%s%%'`,
		project, dataset, suffix, host, section)
}

// pathPattern builds the strict content-path regexp mirroring the normalizer's
// join-key space.
func pathPattern(host, section string) string {
	escapedHost := strings.ReplaceAll(host, ".", `\.`)
	return fmt.Sprintf(`https://%s/[^/]+/%s/[^?#]+`, escapedHost, section)
}
