package resilience

import "github.com/sells-group/catalog-updater/internal/model"

// Failure kinds.
const (
	KindTransient = "transient"
	KindPermanent = "permanent"
)

// NewFailure classifies err and records it against target.
func NewFailure(stage, target string, err error) model.Failure {
	f := model.Failure{Stage: stage, Target: target, Kind: ClassifyError(err)}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

// ClassifyError categorizes an error as transient or permanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return KindTransient
	}
	return KindPermanent
}
