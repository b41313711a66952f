package llmclient

import (
	"fmt"

	"cc-gate/internal/hookio"
)

// Apply maps an AssessmentResult to a hook decision under the fixed
// policy table: the LLM may only ever automate allow, never deny, in
// normal mode. Test mode surfaces every non-allow outcome as an
// explicit deny so an offline accuracy harness can score it. ok=false
// means pass-through — write nothing to stdout.
func Apply(result AssessmentResult, testMode bool) (output hookio.HookOutput, ok bool) {
	switch result.Kind {
	case KindAssessment:
		switch result.Assessment.Classification {
		case ClassificationAllow:
			return hookio.Allow(fmt.Sprintf("LLM: %s", result.Assessment.Reasoning)), true
		default: // ClassificationQuery
			if testMode {
				return hookio.Deny(fmt.Sprintf("LLM Query: %s", result.Assessment.Reasoning)), true
			}
			return hookio.HookOutput{}, false
		}
	case KindTimeout:
		if testMode {
			return hookio.Deny("LLM timeout"), true
		}
		return hookio.HookOutput{}, false
	case KindError:
		if testMode {
			return hookio.Deny(fmt.Sprintf("LLM error: %s", result.ErrMessage)), true
		}
		return hookio.HookOutput{}, false
	default:
		return hookio.HookOutput{}, false
	}
}
