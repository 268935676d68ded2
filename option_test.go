package cargosafe

import (
	"slices"
	"testing"
)

func TestWithExtraReadPaths(t *testing.T) {
	o := applyOptions([]Option{WithExtraReadPaths("/opt/a", "/opt/b")})
	if !slices.Equal(o.extraRead, []string{"/opt/a", "/opt/b"}) {
		t.Errorf("extraRead = %v", o.extraRead)
	}
	if len(o.extraWrite) != 0 {
		t.Errorf("extraWrite = %v, want empty", o.extraWrite)
	}
}

func TestWithExtraPathsAppends(t *testing.T) {
	o := applyOptions([]Option{
		WithExtraWritePaths("/w1"),
		WithExtraReadPaths("/r1"),
		WithExtraWritePaths("/w2"),
	})
	if !slices.Equal(o.extraWrite, []string{"/w1", "/w2"}) {
		t.Errorf("extraWrite = %v", o.extraWrite)
	}
	if !slices.Equal(o.extraRead, []string{"/r1"}) {
		t.Errorf("extraRead = %v", o.extraRead)
	}
}

func TestWithExtraPathsCopiesInput(t *testing.T) {
	paths := []string{"/opt/a"}
	opt := WithExtraReadPaths(paths...)
	paths[0] = "/mutated"
	if o := applyOptions([]Option{opt}); o.extraRead[0] != "/opt/a" {
		t.Errorf("option aliased caller slice: %v", o.extraRead)
	}
}

func TestApplyOptionsSkipsNil(t *testing.T) {
	o := applyOptions([]Option{nil, WithExtraWritePaths("/w"), nil})
	if !slices.Equal(o.extraWrite, []string{"/w"}) {
		t.Errorf("extraWrite = %v", o.extraWrite)
	}
}
