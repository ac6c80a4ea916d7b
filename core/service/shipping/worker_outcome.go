package shipping

import "github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"

// OutcomeKind tells the candidate loop whether to stop.
type OutcomeKind int

const (
	// OutcomeOK is a definitive yes/no. The loop stops.
	OutcomeOK OutcomeKind = iota
	// OutcomeRetryable is an infrastructure failure (fetch or llm call). The loop moves on.
	OutcomeRetryable
	// OutcomeSkip is a usable call with an unusable result. The loop moves on.
	OutcomeSkip
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeSkip:
		return "skip"
	default:
		return "outcome(?)"
	}
}

// Per-candidate diagnostics recorded when no answer map is available.
const (
	DiagFetchFailed     = "fetch failed"
	DiagEmptyContent    = "content extracted but empty"
	DiagLLMFailed       = "LLM call failed"
	DiagUnexpectedShape = "unexpected response format from llm"
	DiagUnexpectedValue = "unexpected value in llm response format"
)

// CandidateOutcome is the result of checking one shipping-policy page.
type CandidateOutcome struct {
	Kind    OutcomeKind
	Verdict domain.Verdict
	Answer  *Answer
	Reason  string
}

func decided(v domain.Verdict, a *Answer) CandidateOutcome {
	return CandidateOutcome{Kind: OutcomeOK, Verdict: v, Answer: a}
}

func retryable(reason string) CandidateOutcome {
	return CandidateOutcome{Kind: OutcomeRetryable, Reason: reason}
}

func skip(reason string, a *Answer) CandidateOutcome {
	return CandidateOutcome{Kind: OutcomeSkip, Reason: reason, Answer: a}
}

// NotClear reports whether the model explicitly could not decide.
func (o CandidateOutcome) NotClear() bool {
	return o.Answer != nil && o.Answer.Value == AnswerNotClear
}

// Diagnostic is what gets stored for the candidate url: the parsed answer
// when there is one, otherwise the failure reason.
func (o CandidateOutcome) Diagnostic() any {
	if o.Answer != nil && (o.Kind == OutcomeOK || o.NotClear()) {
		return o.Answer.Raw
	}
	return o.Reason
}
