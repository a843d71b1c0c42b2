package advice

import (
	"context"
	"sync"
)

type stubLLMClient struct {
	mu       sync.Mutex
	resp     LLMResponse
	err      error
	requests []LLMRequest
}

func (s *stubLLMClient) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.resp, s.err
}

func (s *stubLLMClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
