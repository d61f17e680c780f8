package ferrors

import (
	"errors"
	"os"
	"testing"
)

func TestFileErrorClassifiesNotFound(t *testing.T) {
	underlying := &os.PathError{Op: "open", Path: "/a.typ", Err: os.ErrNotExist}
	err := NewFileError("read", "/a.typ", underlying)

	if err.Kind != KindNotFound {
		t.Errorf("expected KindNotFound, got %v", err.Kind)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected Unwrap to expose os.ErrNotExist")
	}
}

func TestFileErrorClassifiesAccessDenied(t *testing.T) {
	underlying := &os.PathError{Op: "open", Path: "/a.typ", Err: os.ErrPermission}
	err := NewFileError("read", "/a.typ", underlying)

	if err.Kind != KindAccessDenied {
		t.Errorf("expected KindAccessDenied, got %v", err.Kind)
	}
}

func TestFileErrorEqualIgnoresTimestamp(t *testing.T) {
	a := NewFileErrorKind(KindInvalidUtf8, "source", "/a.typ", errors.New("bad utf8"))
	b := NewFileErrorKind(KindInvalidUtf8, "source", "/a.typ", errors.New("bad utf8 again"))

	if !a.Equal(b) {
		t.Errorf("expected equal classification to compare equal regardless of message/timestamp")
	}

	c := NewFileErrorKind(KindNotFound, "source", "/a.typ", errors.New("gone"))
	if a.Equal(c) {
		t.Errorf("expected differing kinds to compare unequal")
	}
}

func TestFileErrorEqualNilHandling(t *testing.T) {
	var a, b *FileError
	if !a.Equal(b) {
		t.Errorf("expected two nils to compare equal")
	}
	c := NewFileErrorKind(KindOther, "op", "/p", nil)
	if a.Equal(c) || c.Equal(a) {
		t.Errorf("expected nil vs non-nil to compare unequal")
	}
}

func TestMultiErrorFiltersNil(t *testing.T) {
	me := NewMultiError([]error{nil, errors.New("one"), nil, errors.New("two")})
	if len(me.Errors) != 2 {
		t.Fatalf("expected 2 errors after filtering nils, got %d", len(me.Errors))
	}
	if me.Error() == "" {
		t.Errorf("expected non-empty message")
	}
}

func TestMultiErrorNoErrors(t *testing.T) {
	me := NewMultiError(nil)
	if me.Error() != "no errors" {
		t.Errorf("expected sentinel message for empty MultiError, got %q", me.Error())
	}
}

func TestInternalInvariant(t *testing.T) {
	err := NewInternalInvariant("invalidate_path", "file id never seen")
	if err.Error() == "" {
		t.Errorf("expected non-empty message")
	}
}
