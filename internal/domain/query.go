package domain

const (
	SortAscend  = "ascend"
	SortDescend = "descend"
)

// PictureQuery is also the cache key material for listings, so field order matters.
type PictureQuery struct {
	Current       int           `json:"current"`
	PageSize      int           `json:"pageSize"`
	SortField     string        `json:"sortField,omitempty"`
	SortOrder     string        `json:"sortOrder,omitempty"`
	ID            *int64        `json:"id,omitempty"`
	Name          string        `json:"name,omitempty"`
	Introduction  string        `json:"introduction,omitempty"`
	Category      string        `json:"category,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	PicFormat     string        `json:"picFormat,omitempty"`
	SearchText    string        `json:"searchText,omitempty"`
	UserID        string        `json:"userId,omitempty"`
	SpaceID       *int64        `json:"spaceId,omitempty"`
	NullSpaceID   bool          `json:"nullSpaceId,omitempty"`
	ReviewStatus  *ReviewStatus `json:"reviewStatus,omitempty"`
	ReviewerID    string        `json:"reviewerId,omitempty"`
	ReviewMessage string        `json:"reviewMessage,omitempty"`
}

type SpaceQuery struct {
	Current    int         `json:"current"`
	PageSize   int         `json:"pageSize"`
	SortField  string      `json:"sortField,omitempty"`
	SortOrder  string      `json:"sortOrder,omitempty"`
	UserID     string      `json:"userId,omitempty"`
	SpaceName  string      `json:"spaceName,omitempty"`
	SpaceLevel *SpaceLevel `json:"spaceLevel,omitempty"`
}

type Page[T any] struct {
	Current  int   `json:"current"`
	PageSize int   `json:"size"`
	Total    int64 `json:"total"`
	Records  []T   `json:"records"`
}

// normalizePaging applies the default page number and size.
func normalizePaging(current, size int) (int, int) {
	if current < 1 {
		current = 1
	}
	if size < 1 {
		size = 10
	}
	return current, size
}

// Normalize fills paging defaults; callers enforce their own maximum.
func (q *PictureQuery) Normalize() {
	q.Current, q.PageSize = normalizePaging(q.Current, q.PageSize)
}

// Normalize fills paging defaults; callers enforce their own maximum.
func (q *SpaceQuery) Normalize() {
	q.Current, q.PageSize = normalizePaging(q.Current, q.PageSize)
}

func (q PictureQuery) Offset() int {
	return (q.Current - 1) * q.PageSize
}

func (q SpaceQuery) Offset() int {
	return (q.Current - 1) * q.PageSize
}
