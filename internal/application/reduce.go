package application

import "github.com/ericfisherdev/buildstatus/internal/domain/model"

// ReduceStatus folds the check runs and the combined commit status state of a
// commit into an overall status and conclusion.
//
// Check run conclusions decide failure before in-flight runs decide pending.
// The combined status is applied afterwards: a pending combined state forces
// both values to pending even when a check run already failed, and a failure
// or error combined state forces failure. An empty combinedState means the
// commit has no statuses and leaves the check run verdict alone.
func ReduceStatus(checkRuns []model.CheckRun, combinedState string) (status, conclusion model.OverallStatus) {
	status = model.OverallSuccess
	conclusion = model.OverallSuccess

	switch {
	case anyConclusionFailed(checkRuns):
		status = model.OverallFailure
		conclusion = model.OverallFailure
	case anyInFlight(checkRuns):
		status = model.OverallPending
		conclusion = model.OverallPending
	}

	switch combinedState {
	case model.StatusStatePending:
		status = model.OverallPending
		conclusion = model.OverallPending
	case model.StatusStateFailure, model.StatusStateError:
		status = model.OverallFailure
		conclusion = model.OverallFailure
	}

	return status, conclusion
}

func anyConclusionFailed(checkRuns []model.CheckRun) bool {
	for _, cr := range checkRuns {
		switch cr.Conclusion {
		case model.ConclusionFailure, model.ConclusionCancelled, model.ConclusionTimedOut:
			return true
		}
	}
	return false
}

func anyInFlight(checkRuns []model.CheckRun) bool {
	for _, cr := range checkRuns {
		if cr.Status == model.CheckStatusQueued || cr.Status == model.CheckStatusInProgress {
			return true
		}
	}
	return false
}
