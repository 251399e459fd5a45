package domain

type ReviewStatus int

const (
	ReviewPending  ReviewStatus = 0
	ReviewPass     ReviewStatus = 1
	ReviewRejected ReviewStatus = 2
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewPass, ReviewRejected:
		return true
	}
	return false
}

func (s ReviewStatus) String() string {
	switch s {
	case ReviewPending:
		return "pending"
	case ReviewPass:
		return "pass"
	case ReviewRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
