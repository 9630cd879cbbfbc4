package bus

import (
	"context"
	"sync"

	"github.com/quiltmail/contextbus/pkg/catalog"
)

// DocumentMutator applies the built-in generic capabilities to the context's
// document: style and class mutation, plus the last-resort degraded notice.
type DocumentMutator interface {
	SetStyle(selector, property, value string)
	AddClass(selector, class string)
	RemoveClass(selector, class string)
	// ShowNotice renders a degraded-mode notice directly into the document,
	// used when no messaging channel exists at all.
	ShowNotice(text string)
}

// NoOpMutator is a DocumentMutator that does nothing.
type NoOpMutator struct{}

func (NoOpMutator) SetStyle(_, _, _ string) {}
func (NoOpMutator) AddClass(_, _ string)    {}
func (NoOpMutator) RemoveClass(_, _ string) {}
func (NoOpMutator) ShowNotice(_ string)     {}

// MutationOp records one applied document mutation.
type MutationOp struct {
	Op       string
	Selector string
	Name     string
	Value    string
}

// RecordingMutator is a DocumentMutator that records operations (for testing).
type RecordingMutator struct {
	mu  sync.Mutex
	ops []MutationOp
}

func (m *RecordingMutator) SetStyle(selector, property, value string) {
	m.record(MutationOp{Op: "setStyle", Selector: selector, Name: property, Value: value})
}

func (m *RecordingMutator) AddClass(selector, class string) {
	m.record(MutationOp{Op: "addClass", Selector: selector, Name: class})
}

func (m *RecordingMutator) RemoveClass(selector, class string) {
	m.record(MutationOp{Op: "removeClass", Selector: selector, Name: class})
}

func (m *RecordingMutator) ShowNotice(text string) {
	m.record(MutationOp{Op: "notice", Value: text})
}

// Ops returns the recorded operations.
func (m *RecordingMutator) Ops() []MutationOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MutationOp, len(m.ops))
	copy(out, m.ops)
	return out
}

func (m *RecordingMutator) record(op MutationOp) {
	m.mu.Lock()
	m.ops = append(m.ops, op)
	m.mu.Unlock()
}

// AuthFlow opens the authorization dialog and awaits its outcome. The bus
// treats the flow itself as an external collaborator.
type AuthFlow interface {
	OpenDialog(ctx context.Context, req *catalog.AuthDialogRequest) (*catalog.AuthDialogResult, error)
}

// AuthFlowFunc adapts a function to AuthFlow.
type AuthFlowFunc func(ctx context.Context, req *catalog.AuthDialogRequest) (*catalog.AuthDialogResult, error)

func (f AuthFlowFunc) OpenDialog(ctx context.Context, req *catalog.AuthDialogRequest) (*catalog.AuthDialogResult, error) {
	return f(ctx, req)
}

// ChunkFetcher streams one binary chunk of a large attachment through the
// privileged context's network access.
type ChunkFetcher interface {
	FetchChunk(ctx context.Context, accountID, resourceID, chunkID string) ([]byte, error)
}

// ChunkFetcherFunc adapts a function to ChunkFetcher.
type ChunkFetcherFunc func(ctx context.Context, accountID, resourceID, chunkID string) ([]byte, error)

func (f ChunkFetcherFunc) FetchChunk(ctx context.Context, accountID, resourceID, chunkID string) ([]byte, error) {
	return f(ctx, accountID, resourceID, chunkID)
}
