package events

import (
	"testing"
)

type recordingHandler struct {
	NoopHandler
	scans      []ScanCompleted
	violations []ConstraintViolated
}

func (h *recordingHandler) OnScanCompleted(e ScanCompleted) {
	h.scans = append(h.scans, e)
}

func (h *recordingHandler) OnConstraintViolated(e ConstraintViolated) {
	h.violations = append(h.violations, e)
}

type panickingHandler struct {
	NoopHandler
}

func (panickingHandler) OnScanCompleted(ScanCompleted) {
	panic("handler bug")
}

func TestFanOutInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	a := &recordingHandler{}
	b := &recordingHandler{}
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.PublishScanCompleted(ScanCompleted{ScanID: "s1", FilesScanned: 3})

	if len(a.scans) != 1 || len(b.scans) != 1 {
		t.Fatalf("delivery counts = %d, %d, want 1 each", len(a.scans), len(b.scans))
	}
	if a.scans[0].ScanID != "s1" {
		t.Errorf("payload = %+v", a.scans[0])
	}
}

func TestPanicIsolation(t *testing.T) {
	bus := NewBus()
	after := &recordingHandler{}
	bus.Subscribe(panickingHandler{})
	bus.Subscribe(after)

	bus.PublishScanCompleted(ScanCompleted{ScanID: "s1"})

	if len(after.scans) != 1 {
		t.Error("panicking handler aborted dispatch to later subscribers")
	}
}

func TestNoopDefaultsSatisfyInterface(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(NoopHandler{})

	// None of these may panic against a pure no-op handler.
	bus.PublishScanCompleted(ScanCompleted{})
	bus.PublishPatternApproved(PatternApproved{})
	bus.PublishConstraintViolated(ConstraintViolated{})
	bus.PublishMemoryCreated(MemoryCreated{ExternalID: "mem-1"})
}

func TestTypedPayloads(t *testing.T) {
	bus := NewBus()
	h := &recordingHandler{}
	bus.Subscribe(h)

	bus.PublishConstraintViolated(ConstraintViolated{
		Fingerprint: "fp",
		File:        "a.ts",
		Line:        3,
		Severity:    "warning",
	})

	if len(h.violations) != 1 || h.violations[0].File != "a.ts" {
		t.Errorf("violations = %+v", h.violations)
	}
}
