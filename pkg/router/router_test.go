package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/quiltmail/contextbus/pkg/blobstore"
	"github.com/quiltmail/contextbus/pkg/buserr"
	"github.com/quiltmail/contextbus/pkg/catalog"
	"github.com/quiltmail/contextbus/pkg/envelope"
)

func TestDispatch_Responder(t *testing.T) {
	r := New(Params{})
	r.Register("bus.ping", Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"pong": true}, nil
	}))

	env := envelope.New("bus.ping", map[string]any{}, "")
	resp, dispatched := r.Dispatch(context.Background(), env)
	if !dispatched {
		t.Fatal("expected dispatch")
	}
	if resp == nil || resp.Result["pong"] != true {
		t.Errorf("expected pong:true, got %+v", resp)
	}
}

func TestDispatch_AtMostOnce(t *testing.T) {
	r := New(Params{})
	calls := 0
	r.Register("counter", Notifies(func(_ context.Context, _ map[string]any) {
		calls++
	}))

	env := envelope.New("counter", nil, "")
	for i := 0; i < 5; i++ {
		r.Dispatch(context.Background(), env)
	}
	if calls != 1 {
		t.Errorf("expected handler to run exactly once, ran %d times", calls)
	}
}

func TestDispatch_UnknownName(t *testing.T) {
	r := New(Params{})
	env := envelope.New("nobody.home", nil, "")
	resp, dispatched := r.Dispatch(context.Background(), env)
	if dispatched || resp != nil {
		t.Error("expected unknown name to be silently ignored")
	}
	// Not marked seen: a later registration may still handle a redelivery.
	if r.Ledger().Seen(env.ID) {
		t.Error("expected undispatched envelope to stay unmarked")
	}
}

func TestDispatch_LastRegistrationWins(t *testing.T) {
	r := New(Params{})
	r.Register("x", Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"v": "old"}, nil
	}))
	r.Register("x", Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"v": "new"}, nil
	}))

	resp, _ := r.Dispatch(context.Background(), envelope.New("x", nil, ""))
	if resp.Result["v"] != "new" {
		t.Errorf("expected new, got %v", resp.Result["v"])
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	r := New(Params{})
	r.Register("fail", Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return nil, errors.New("handler exploded")
	}))

	resp, dispatched := r.Dispatch(context.Background(), envelope.New("fail", nil, ""))
	if !dispatched {
		t.Fatal("expected dispatch")
	}
	if resp.Exception == nil || resp.Exception.Message != "handler exploded" {
		t.Errorf("expected exception record, got %+v", resp)
	}
	if resp.Exception.Tag != buserr.TagStandard {
		t.Errorf("expected standard tag, got %s", resp.Exception.Tag)
	}
}

func TestDispatch_BinaryDecodeBeforeHandler(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	r := New(Params{Blobs: store})

	var got []byte
	r.Register("sink", Notifies(func(_ context.Context, payload map[string]any) {
		got, _ = payload["data"].([]byte)
	}))

	env := envelope.New("sink", map[string]any{"data": []byte("payload bytes")}, "")
	if err := env.EncodeBinary(ctx, store); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, dispatched := r.Dispatch(ctx, env); !dispatched {
		t.Fatal("expected dispatch")
	}
	if string(got) != "payload bytes" {
		t.Errorf("expected decoded bytes in handler, got %q", got)
	}
}

func TestDispatch_BinaryOnlyWireEnvelope(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	r := New(Params{Blobs: store})

	var got []byte
	r.Register("sink", Notifies(func(_ context.Context, payload map[string]any) {
		got, _ = payload["data"].([]byte)
	}))

	h, err := store.Create(ctx, []byte("payload bytes"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Wire shape from a context whose envelope carried only binary fields:
	// no payload key at all, just the handle.
	wire := fmt.Sprintf(`{"name":"sink","id":"wire-1","binaryRefs":{"data":%q}}`, h)
	var env envelope.Envelope
	if err := envelope.Decode([]byte(wire), &env); err != nil {
		t.Fatalf("decode wire: %v", err)
	}

	if _, dispatched := r.Dispatch(ctx, &env); !dispatched {
		t.Fatal("expected dispatch")
	}
	if string(got) != "payload bytes" {
		t.Errorf("expected decoded bytes in handler, got %q", got)
	}
}

func TestDispatch_DuplicateSkipsConsume(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	r := New(Params{Blobs: store})
	r.Register("sink", Notifies(func(_ context.Context, _ map[string]any) {}))

	env := envelope.New("sink", map[string]any{"data": []byte("x")}, "")
	if err := env.EncodeBinary(ctx, store); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, dispatched := r.Dispatch(ctx, env); !dispatched {
		t.Fatal("expected first dispatch")
	}

	// Duplicate delivery of the same id: no handler run, no consume attempt,
	// so no decode error response either.
	resp, dispatched := r.Dispatch(ctx, env)
	if dispatched || resp != nil {
		t.Error("expected duplicate to be dropped before decode")
	}
}

func TestDispatch_ResponseBinaryEncoded(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	r := New(Params{Blobs: store})
	r.Register(catalog.NameAttachmentChunk, Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"data": []byte("chunk")}, nil
	}))

	resp, _ := r.Dispatch(ctx, envelope.New(catalog.NameAttachmentChunk, nil, ""))
	if resp.Result["data"] != nil {
		t.Error("expected result binary field moved to a blob ref")
	}
	h, ok := resp.BinaryRefs["data"]
	if !ok {
		t.Fatal("expected binary ref for data")
	}
	data, err := store.Consume(ctx, h)
	if err != nil || string(data) != "chunk" {
		t.Errorf("expected chunk via handle, got %q (%v)", data, err)
	}
}

func TestDispatch_ProtocolGate(t *testing.T) {
	r := New(Params{})
	r.Register(catalog.NameAttachmentChunk, Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}))

	env := envelope.New(catalog.NameAttachmentChunk, nil, "")
	env.Proto = "1.0.0" // predates attachment.chunk
	if _, dispatched := r.Dispatch(context.Background(), env); dispatched {
		t.Error("expected incompatible sender to be ignored")
	}

	env2 := envelope.New(catalog.NameAttachmentChunk, nil, "")
	if _, dispatched := r.Dispatch(context.Background(), env2); !dispatched {
		t.Error("expected current protocol to dispatch")
	}
}
