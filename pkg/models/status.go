package models

// DeriveStatus maps the per-stage results to one overall workflow status.
// Precedence, first match wins:
//
//  1. any stage failed            -> failed
//  2. all succeeded and non-empty -> succeeded
//  3. any stage running           -> running
//  4. any stage has started       -> partial
//  5. otherwise                   -> created
//
// Queued and cancelled are never derived here: queued is set once by the
// orchestrator when it begins driving a workflow, cancelled only through an
// explicit cancel override. Callers must derive and persist after every
// stage mutation so stored and exposed state stay consistent.
func DeriveStatus(results map[string]*StageResult) WorkflowStatus {
	var anyFailed, anyRunning, anyStarted bool

	allSucceeded := true

	for _, result := range results {
		switch result.Status {
		case StageFailed:
			anyFailed = true
		case StageRunning:
			anyRunning = true
		case StageSucceeded:
		default:
		}

		if result.Status != StageSucceeded {
			allSucceeded = false
		}

		switch result.Status {
		case StageRunning, StageSucceeded, StageFailed, StageSkipped:
			anyStarted = true
		default:
		}
	}

	switch {
	case anyFailed:
		return WorkflowFailed
	case allSucceeded && len(results) > 0:
		return WorkflowSucceeded
	case anyRunning:
		return WorkflowRunning
	case anyStarted:
		return WorkflowPartial
	default:
		return WorkflowCreated
	}
}
