package model

// LinkAnalytics summarizes one link's recorded clicks. TotalClicks is
// the lifetime counter, not the length of ClickDetails, which is capped
// at MaxClickEvents.
type LinkAnalytics struct {
	TotalClicks    int64        `json:"totalClicks"`
	ClicksToday    int64        `json:"clicksToday"`
	ClicksThisWeek int64        `json:"clicksThisWeek"`
	ClickDetails   []ClickEvent `json:"clickDetails"`
}

// OwnerStats aggregates across all of one owner's links.
type OwnerStats struct {
	TotalLinks  int64 `json:"totalLinks"`
	TotalClicks int64 `json:"totalClicks"`
	ActiveLinks int64 `json:"activeLinks"`
}
