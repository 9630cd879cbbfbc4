package buserr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKind_Retryable(t *testing.T) {
	if !KindTransient.Retryable() {
		t.Error("expected transient to be retryable")
	}
	for _, k := range []Kind{KindPermanent, KindHandler, KindProtocol} {
		if k.Retryable() {
			t.Errorf("expected %s not to be retryable", k)
		}
	}
}

func TestToRecord_Standard(t *testing.T) {
	err := New(KindHandler, "mail.fetch", "boom")
	err.Stack = "handler stack"

	rec := ToRecord(err)
	if rec.Tag != TagStandard {
		t.Errorf("expected tag %s, got %s", TagStandard, rec.Tag)
	}
	if rec.Message != "boom" {
		t.Errorf("expected message boom, got %s", rec.Message)
	}
	if rec.Stack != "handler stack" {
		t.Errorf("expected handler stack, got %s", rec.Stack)
	}
}

func TestToRecord_PlainError(t *testing.T) {
	rec := ToRecord(fmt.Errorf("plain failure"))
	if rec.Tag != TagStandard {
		t.Errorf("expected tag %s, got %s", TagStandard, rec.Tag)
	}
	if rec.Stack == "" {
		t.Error("expected a captured stack for a plain error")
	}
}

func TestToRecord_HTTP(t *testing.T) {
	err := &HTTPError{
		BusError:     BusError{Kind: KindHandler, Message: "request failed"},
		Status:       404,
		URL:          "https://api.example.com/chunk/7",
		ResponseText: "not found",
		StatusText:   "Not Found",
	}

	rec := ToRecord(err)
	if rec.Tag != TagAjax {
		t.Fatalf("expected tag %s, got %s", TagAjax, rec.Tag)
	}
	if rec.Status != 404 || rec.ResponseText != "not found" {
		t.Errorf("expected 404/not found, got %d/%s", rec.Status, rec.ResponseText)
	}
}

func TestFromRecord_RoundTripHTTP(t *testing.T) {
	rec := &Record{
		Tag:          TagAjax,
		Message:      "request failed",
		Stack:        "remote stack",
		Status:       404,
		URL:          "https://api.example.com/chunk/7",
		ResponseText: "not found",
		StatusText:   "Not Found",
	}

	err := FromRecord(rec, "attachment.chunk", "caller stack")

	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if he.Status != 404 {
		t.Errorf("expected status 404, got %d", he.Status)
	}
	if !strings.Contains(err.Error(), "attachment.chunk") {
		t.Errorf("expected message to contain the message name, got %q", err.Error())
	}
	if !strings.Contains(he.Stack, "caller stack") || !strings.Contains(he.Stack, "remote stack") {
		t.Errorf("expected concatenated stacks, got %q", he.Stack)
	}
	if !strings.Contains(he.Stack, stackMarker) {
		t.Error("expected stack marker between caller and remote stacks")
	}
	if KindOf(err) != KindHandler {
		t.Errorf("expected handler kind, got %s", KindOf(err))
	}
}

func TestKindOf_Foreign(t *testing.T) {
	if k := KindOf(errors.New("nope")); k != "" {
		t.Errorf("expected empty kind for foreign error, got %s", k)
	}
}
