package domain

const mib = 1024 * 1024

type SpaceLevel int

const (
	SpaceLevelCommon       SpaceLevel = 0
	SpaceLevelProfessional SpaceLevel = 1
	SpaceLevelFlagship     SpaceLevel = 2
)

// SpaceLevelInfo describes the fixed ceilings of a tier.
type SpaceLevelInfo struct {
	Value    SpaceLevel `json:"value"`
	Text     string     `json:"text"`
	MaxSize  int64      `json:"maxSize"`
	MaxCount int64      `json:"maxCount"`
}

var spaceLevels = []SpaceLevelInfo{
	{Value: SpaceLevelCommon, Text: "common", MaxSize: 100 * mib, MaxCount: 100},
	{Value: SpaceLevelProfessional, Text: "professional", MaxSize: 1000 * mib, MaxCount: 1000},
	{Value: SpaceLevelFlagship, Text: "flagship", MaxSize: 10000 * mib, MaxCount: 10000},
}

func SpaceLevels() []SpaceLevelInfo {
	out := make([]SpaceLevelInfo, len(spaceLevels))
	copy(out, spaceLevels)
	return out
}

func (l SpaceLevel) Info() (SpaceLevelInfo, bool) {
	for _, info := range spaceLevels {
		if info.Value == l {
			return info, true
		}
	}
	return SpaceLevelInfo{}, false
}
