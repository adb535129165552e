package persona

import (
	"github.com/zhouzirui/weibo-seed/internal/dataset"
)

// Profile captures the persona attributes an agent is registered with.
type Profile struct {
	DatasetID   string          `json:"datasetId,omitempty" yaml:"datasetId,omitempty"`
	Username    string          `json:"username" yaml:"username"`
	DisplayName string          `json:"displayName" yaml:"displayName"`
	Bio         string          `json:"bio" yaml:"bio"`
	Summary     string          `json:"summary" yaml:"summary"`
	Gender      string          `json:"gender" yaml:"gender"`
	Age         string          `json:"age" yaml:"age"`
	MBTI        string          `json:"mbti" yaml:"mbti"`
	Country     string          `json:"country" yaml:"country"`
	Raw         *dataset.Object `json:"raw,omitempty" yaml:"-"`
}

// Defaults used when a record leaves a field unresolved.
const (
	NoProfileSummary = "no profile available"
	DefaultBio       = "no bio available"
	Unknown          = "unknown"
)
