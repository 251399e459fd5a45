package domain

type QuotaInfo struct {
	SpaceID           int64   `json:"spaceId"`
	TotalSpace        int64   `json:"totalSpace"`
	UsedSpace         int64   `json:"usedSpace"`
	AvailableSpace    int64   `json:"availableSpace"`
	UsagePercent      float64 `json:"usagePercent"`
	TotalCount        int64   `json:"totalCount"`
	UsedCount         int64   `json:"usedCount"`
	CountUsagePercent float64 `json:"countUsagePercent"`
}
