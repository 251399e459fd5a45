package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

type Picture struct {
	ID            int64        `json:"id" db:"id"`
	URL           string       `json:"url" db:"url"`
	ThumbnailURL  string       `json:"thumbnailUrl" db:"thumbnail_url"`
	PreviewURL    string       `json:"previewUrl" db:"preview_url"`
	Name          string       `json:"name" db:"name"`
	Introduction  string       `json:"introduction" db:"introduction"`
	Category      string       `json:"category" db:"category"`
	Tags          Tags         `json:"tags" db:"tags"`
	PicSize       int64        `json:"picSize" db:"pic_size"`
	PicWidth      int          `json:"picWidth" db:"pic_width"`
	PicHeight     int          `json:"picHeight" db:"pic_height"`
	PicScale      float64      `json:"picScale" db:"pic_scale"`
	PicFormat     string       `json:"picFormat" db:"pic_format"`
	UserID        string       `json:"userId" db:"user_id"`
	SpaceID       *int64       `json:"spaceId,omitempty" db:"space_id"`
	ReviewStatus  ReviewStatus `json:"reviewStatus" db:"review_status"`
	ReviewMessage string       `json:"reviewMessage,omitempty" db:"review_message"`
	ReviewerID    *string      `json:"reviewerId,omitempty" db:"reviewer_id"`
	ReviewTime    *time.Time   `json:"reviewTime,omitempty" db:"review_time"`
	EditTime      *time.Time   `json:"editTime,omitempty" db:"edit_time"`
	CreatedAt     time.Time    `json:"createTime" db:"created_at"`
	UpdatedAt     time.Time    `json:"updateTime" db:"updated_at"`
}

// IsPublic reports whether the picture lives in the public library.
func (p *Picture) IsPublic() bool {
	return p.SpaceID == nil
}

// Tags is an order-irrelevant set of labels stored as a JSON array.
type Tags []string

// Normalize sorts and de-duplicates the set, dropping empty entries.
func (t Tags) Normalize() Tags {
	seen := make(map[string]struct{}, len(t))
	out := make(Tags, 0, len(t))
	for _, tag := range t {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported tags type %T", src)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("failed to decode tags: %w", err)
	}
	*t = tags
	return nil
}

// UploadRequest is the caller-controlled part of an upload.
type UploadRequest struct {
	ID      *int64 `json:"id,omitempty"`
	SpaceID *int64 `json:"spaceId,omitempty"`
	PicName string `json:"picName,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
}

type BatchUploadRequest struct {
	SearchText string `json:"searchText"`
	Count      int    `json:"count"`
	NamePrefix string `json:"namePrefix,omitempty"`
}

type PictureEditRequest struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Introduction string   `json:"introduction"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
}

type PictureReviewRequest struct {
	ID            int64        `json:"id"`
	ReviewStatus  ReviewStatus `json:"reviewStatus"`
	ReviewMessage string       `json:"reviewMessage"`
}
