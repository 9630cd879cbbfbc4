package envelope

import (
	"context"
	"fmt"

	"github.com/quiltmail/contextbus/pkg/blobstore"
)

// EncodeBinary moves every top-level []byte field of the payload into the
// blob store and records its handle under the field name. The payload is
// mutated in place; each handle is consumed by the eventual single reader.
// Several transports cap payload size or mangle raw bytes; the indirection
// lets arbitrarily large binary fields cross by reference instead.
func (e *Envelope) EncodeBinary(ctx context.Context, store blobstore.Store) error {
	refs, err := encodeBinaryFields(ctx, e.Payload, store)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		e.BinaryRefs = refs
	}
	return nil
}

// DecodeBinary restores the payload's binary fields by consuming the
// recorded handles. Must run after the dedup check: a duplicate delivery
// must never attempt a second consume of an already-consumed handle.
// The wire form may omit the payload entirely when every field is binary.
func (e *Envelope) DecodeBinary(ctx context.Context, store blobstore.Store) error {
	if e.Payload == nil && len(e.BinaryRefs) > 0 {
		e.Payload = make(map[string]any, len(e.BinaryRefs))
	}
	return decodeBinaryFields(ctx, e.Payload, e.BinaryRefs, store)
}

// EncodeBinary moves the result's top-level []byte fields into the blob
// store, mirroring Envelope.EncodeBinary for the response direction.
func (r *Response) EncodeBinary(ctx context.Context, store blobstore.Store) error {
	refs, err := encodeBinaryFields(ctx, r.Result, store)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		r.BinaryRefs = refs
	}
	return nil
}

// DecodeBinary restores the result's binary fields. The wire form may omit
// the result entirely when every field is binary.
func (r *Response) DecodeBinary(ctx context.Context, store blobstore.Store) error {
	if r.Result == nil && len(r.BinaryRefs) > 0 {
		r.Result = make(map[string]any, len(r.BinaryRefs))
	}
	return decodeBinaryFields(ctx, r.Result, r.BinaryRefs, store)
}

func encodeBinaryFields(ctx context.Context, payload map[string]any, store blobstore.Store) (map[string]blobstore.Handle, error) {
	var refs map[string]blobstore.Handle
	for field, v := range payload {
		data, ok := v.([]byte)
		if !ok {
			continue
		}
		h, err := store.Create(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("envelope: create blob for field %q: %w", field, err)
		}
		if refs == nil {
			refs = make(map[string]blobstore.Handle)
		}
		refs[field] = h
		payload[field] = nil
	}
	return refs, nil
}

func decodeBinaryFields(ctx context.Context, payload map[string]any, refs map[string]blobstore.Handle, store blobstore.Store) error {
	for field, h := range refs {
		data, err := store.Consume(ctx, h)
		if err != nil {
			return fmt.Errorf("envelope: consume blob for field %q: %w", field, err)
		}
		payload[field] = data
	}
	return nil
}
