package domain

import "time"

const MaxSpaceNameLength = 25

type Space struct {
	ID         int64      `json:"id" db:"id"`
	UserID     string     `json:"userId" db:"user_id"`
	SpaceName  string     `json:"spaceName" db:"space_name"`
	SpaceLevel SpaceLevel `json:"spaceLevel" db:"space_level"`
	MaxSize    int64      `json:"maxSize" db:"max_size"`
	MaxCount   int64      `json:"maxCount" db:"max_count"`
	TotalSize  int64      `json:"totalSize" db:"total_size"`
	TotalCount int64      `json:"totalCount" db:"total_count"`
	EditTime   *time.Time `json:"editTime,omitempty" db:"edit_time"`
	CreatedAt  time.Time  `json:"createTime" db:"created_at"`
	UpdatedAt  time.Time  `json:"updateTime" db:"updated_at"`
}

type SpaceAddRequest struct {
	SpaceName  string      `json:"spaceName"`
	SpaceLevel *SpaceLevel `json:"spaceLevel,omitempty"`
}

type SpaceEditRequest struct {
	ID        int64  `json:"id"`
	SpaceName string `json:"spaceName"`
}

// SpaceUpdateRequest is the admin-only variant that may also change the tier and ceilings.
type SpaceUpdateRequest struct {
	ID         int64       `json:"id"`
	SpaceName  string      `json:"spaceName,omitempty"`
	SpaceLevel *SpaceLevel `json:"spaceLevel,omitempty"`
	MaxSize    *int64      `json:"maxSize,omitempty"`
	MaxCount   *int64      `json:"maxCount,omitempty"`
}
