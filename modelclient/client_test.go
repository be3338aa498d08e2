package modelclient

import (
	"context"
	"testing"

	"github.com/2389-research/dialogued/llm"
)

func TestClassifyRetryableIsTransient(t *testing.T) {
	err := &llm.ServerError{ProviderError: llm.ProviderError{SDKError: llm.SDKError{Message: "down"}}}
	if got := classify(err); got != Transient {
		t.Fatalf("expected Transient, got %s", got)
	}
}

func TestClassifyNonRetryableIsPermanent(t *testing.T) {
	err := &llm.AuthenticationError{ProviderError: llm.ProviderError{SDKError: llm.SDKError{Message: "bad key"}}}
	if got := classify(err); got != Permanent {
		t.Fatalf("expected Permanent, got %s", got)
	}
}

func TestClassifyDeadlineExceededIsTransient(t *testing.T) {
	if got := classify(context.DeadlineExceeded); got != Transient {
		t.Fatalf("expected Transient for deadline exceeded, got %s", got)
	}
}

func TestFakeGenerateRecordsCalls(t *testing.T) {
	f := &Fake{Reply: "hi"}
	_, _, err := f.Generate(context.Background(), []Message{llm.UserMessage("hello")}, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.Calls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(f.Calls))
	}
}
