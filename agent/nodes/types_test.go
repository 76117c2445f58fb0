package turnnode

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	st, err := ValidateRequest(GraphInput{
		TurnID:     "t1",
		CustomerID: "  c1  ",
		Channel:    "chat",
		Content:    "  show me hoodies  ",
	}, fixedNow)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.CustomerID != "c1" || st.Content != "show me hoodies" {
		t.Fatalf("state not trimmed: %q %q", st.CustomerID, st.Content)
	}
	if !st.Now.Equal(fixedNow()) {
		t.Fatalf("state time %v", st.Now)
	}
	if len(st.Trace) != 1 || st.Trace[0].Node != "validate" {
		t.Fatalf("trace %+v", st.Trace)
	}
}

func TestValidateRequestRejectsEmptyFields(t *testing.T) {
	t.Parallel()

	if _, err := ValidateRequest(GraphInput{Content: "hi"}, fixedNow); !errors.Is(err, ErrInvalidCustomer) {
		t.Fatalf("error = %v, want ErrInvalidCustomer", err)
	}
	if _, err := ValidateRequest(GraphInput{CustomerID: "c1", Content: "   "}, fixedNow); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("error = %v, want ErrInvalidContent", err)
	}
}

func TestFinalizeReplyRequiresReply(t *testing.T) {
	t.Parallel()

	st := &GraphState{CustomerID: "c1", Reply: ""}
	if _, err := FinalizeReply(st); !errors.Is(err, contractx.ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}

	st.Reply = "here you go"
	st.Routing = contractx.RoutingDecision{Agent: contractx.AgentTypeTransactional, Confidence: 0.92}
	out, err := FinalizeReply(st)
	if err != nil {
		t.Fatalf("FinalizeReply() error = %v", err)
	}
	if out.Reply != "here you go" || out.Routing.Agent != contractx.AgentTypeTransactional {
		t.Fatalf("output %+v", out)
	}
}

func TestSummarizeResultTruncates(t *testing.T) {
	t.Parallel()

	long := make([]byte, resultSummaryLimit*2)
	for i := range long {
		long[i] = 'a'
	}
	res := contractx.CapabilityResult{Name: "catalog.search", Result: string(long), Success: true}
	got := summarizeResult(res)
	if len(got) > resultSummaryLimit+16 {
		t.Fatalf("summary length %d", len(got))
	}

	failed := contractx.CapabilityResult{Name: "order.lookup", Error: "boom"}
	if summarizeResult(failed) != "error: boom" {
		t.Fatalf("failure summary %q", summarizeResult(failed))
	}
}
