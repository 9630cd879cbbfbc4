package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/quiltmail/contextbus/pkg/buserr"
	"github.com/quiltmail/contextbus/pkg/catalog"
	"github.com/quiltmail/contextbus/pkg/envelope"
	"github.com/quiltmail/contextbus/pkg/router"
)

// registerGeneric installs the built-in capabilities every non-privileged
// context carries: document style/class mutation.
func (b *Bus) registerGeneric() {
	b.router.Register(catalog.NameSetStyle, router.Notifies(func(_ context.Context, payload map[string]any) {
		b.mutator.SetStyle(str(payload, "selector"), str(payload, "property"), str(payload, "value"))
	}))
	b.router.Register(catalog.NameAddClass, router.Notifies(func(_ context.Context, payload map[string]any) {
		b.mutator.AddClass(str(payload, "selector"), str(payload, "class"))
	}))
	b.router.Register(catalog.NameRemoveClass, router.Notifies(func(_ context.Context, payload map[string]any) {
		b.mutator.RemoveClass(str(payload, "selector"), str(payload, "class"))
	}))
}

// registerPrivileged installs the privileged-only capabilities: the ping
// probe, the auth dialog, the credential vault, and attachment chunk
// streaming.
func (b *Bus) registerPrivileged() {
	b.router.Register(catalog.NamePing, router.Responds(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"pong": true}, nil
	}))

	b.router.Register(catalog.NameAuthDialog, router.Responds(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		if b.auth == nil {
			return nil, buserr.New(buserr.KindPermanent, catalog.NameAuthDialog, "no auth flow configured")
		}
		var req catalog.AuthDialogRequest
		if err := decodeParams(payload, &req); err != nil {
			return nil, err
		}
		result, err := b.auth.OpenDialog(ctx, &req)
		if err != nil {
			return nil, err
		}
		return encodeResult(result)
	}))

	b.router.Register(catalog.NameCredentialGet, router.Responds(func(_ context.Context, payload map[string]any) (map[string]any, error) {
		var req catalog.CredentialGetRequest
		if err := decodeParams(payload, &req); err != nil {
			return nil, err
		}
		value, found := b.vault.Get(req.AccountID, req.Key)
		return encodeResult(&catalog.CredentialGetResult{Value: value, Found: found})
	}))

	b.router.Register(catalog.NameCredentialSet, router.Responds(func(_ context.Context, payload map[string]any) (map[string]any, error) {
		var req catalog.CredentialSetRequest
		if err := decodeParams(payload, &req); err != nil {
			return nil, err
		}
		b.vault.Set(req.AccountID, req.Key, req.Value, time.Duration(req.ExpiresInSec)*time.Second)
		return map[string]any{"stored": true}, nil
	}))

	b.router.Register(catalog.NameAttachmentChunk, router.Responds(func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		if b.chunks == nil {
			return nil, buserr.New(buserr.KindPermanent, catalog.NameAttachmentChunk, "no chunk fetcher configured")
		}
		var req catalog.ChunkRequest
		if err := decodeParams(payload, &req); err != nil {
			return nil, err
		}
		data, err := b.chunks.FetchChunk(ctx, req.AccountID, req.ResourceID, req.ChunkID)
		if err != nil {
			return nil, err
		}
		// The dispatcher moves the bytes into a blob handle on the way out.
		return map[string]any{"data": data}, nil
	}))
}

func decodeParams(payload map[string]any, v any) error {
	data, err := envelope.Encode(payload)
	if err != nil {
		return fmt.Errorf("bus: encode params: %w", err)
	}
	if err := envelope.Decode(data, v); err != nil {
		return fmt.Errorf("bus: decode params: %w", err)
	}
	return nil
}

func encodeResult(v any) (map[string]any, error) {
	data, err := envelope.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("bus: encode result: %w", err)
	}
	var out map[string]any
	if err := envelope.Decode(data, &out); err != nil {
		return nil, fmt.Errorf("bus: decode result: %w", err)
	}
	return out, nil
}

func str(payload map[string]any, field string) string {
	s, _ := payload[field].(string)
	return s
}
