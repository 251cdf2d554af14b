// Package mock provides test doubles for the services collaborator interfaces.
//
// The mocks run without any external service and behave deterministically:
//
//	embedder := mock.NewMockEmbedder(8)
//	embedder.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{1, 0, 0, 0, 0, 0, 0, 0}, nil
//	}
//
//	llm := mock.NewMockLLM("forty-two")
//	count := llm.CallCount()
//
// Defaults:
//
//   - MockEmbedder returns a unit vector derived from the FNV hash of the text
//   - MockLLM returns its configured response
package mock
