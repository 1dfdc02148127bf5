package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "enrollment")
		panic("boom")
	}()

	out := buf.String()
	if !strings.Contains(out, "PANIC recovered") {
		t.Errorf("expected panic log, got %s", out)
	}
	if !strings.Contains(out, `"context":"enrollment"`) {
		t.Errorf("expected context field, got %s", out)
	}
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "noop")
	}()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)
	sentinel := errors.New("store exploded")

	var got error
	func() {
		defer RecoverPanicWithCallback(logger, "store", func(err error) { got = err })
		panic(sentinel)
	}()

	if !errors.Is(got, sentinel) {
		t.Errorf("callback error = %v, want wrapped sentinel", got)
	}

	called := false
	func() {
		defer RecoverPanicWithCallback(logger, "store", func(error) { called = true })
	}()
	if called {
		t.Error("callback ran without a panic")
	}
}

func TestRecoverPanic_NilLogger(t *testing.T) {
	func() {
		defer RecoverPanic(nil, "nil logger")
		panic("still recovered")
	}()
}

func TestMustRecover(t *testing.T) {
	if err := MustRecover(nil); err != nil {
		t.Errorf("MustRecover(nil) = %v, want nil", err)
	}
	if err := MustRecover("oops"); err == nil || err.Error() != "panic: oops" {
		t.Errorf("MustRecover(string) = %v", err)
	}
}
