package types

import "testing"

func TestPrimitiveString(t *testing.T) {
	if I32.String() != "i32" {
		t.Errorf("expected i32, got %s", I32.String())
	}
	if Unit.String() != "()" {
		t.Errorf("expected (), got %s", Unit.String())
	}
}

func TestPrimitiveIsInteger(t *testing.T) {
	if !I64.IsInteger() {
		t.Error("i64 should be an integer type")
	}
	if F64.IsInteger() {
		t.Error("f64 should not be an integer type")
	}
	if !F32.IsFloat() {
		t.Error("f32 should be a float type")
	}
}

func TestEffectSet(t *testing.T) {
	e := Pure.With(EffectIO).With(EffectAlloc)
	if !e.Has(EffectIO) || !e.Has(EffectAlloc) {
		t.Error("effect set should carry both flags")
	}
	if e.Has(EffectUnsafe) {
		t.Error("effect set should not carry unset flag")
	}
	if e.IsPure() {
		t.Error("non-empty effect set should not be pure")
	}
	if !Pure.IsPure() {
		t.Error("zero value should be pure")
	}
}

func TestEqualPrimitives(t *testing.T) {
	if !Equal(I32, I32) {
		t.Error("I32 should equal I32")
	}
	if Equal(I32, I64) {
		t.Error("I32 should not equal I64")
	}
}

func TestEqualTuple(t *testing.T) {
	a := &Tuple{Elems: []Type{I32, Bool}}
	b := &Tuple{Elems: []Type{I32, Bool}}
	c := &Tuple{Elems: []Type{I32, I32}}
	if !Equal(a, b) {
		t.Error("identical tuples should be equal")
	}
	if Equal(a, c) {
		t.Error("differing tuples should not be equal")
	}
}

func TestEqualFunction(t *testing.T) {
	f1 := &Function{Params: []Type{I32}, Ret: Bool, Effects: Pure}
	f2 := &Function{Params: []Type{I32}, Ret: Bool, Effects: Pure}
	f3 := &Function{Params: []Type{I32}, Ret: Bool, Effects: Pure.With(EffectIO)}
	if !Equal(f1, f2) {
		t.Error("identical function types should be equal")
	}
	if Equal(f1, f3) {
		t.Error("function types with differing effects should not be equal")
	}
}

func TestNamedEquality(t *testing.T) {
	a := &Named{Name: "Point", Fields: []Field{{Name: "x", Type: I32}}}
	b := &Named{Name: "Point"}
	if !Equal(a, b) {
		t.Error("named types with the same name should be considered equal")
	}
}

func TestForallString(t *testing.T) {
	f := &Forall{
		Params: []*TypeParam{{Name: "T"}},
		Body:   &Option{Elem: &TypeParam{Name: "T"}},
	}
	want := "forall<T> Option<T>"
	if f.String() != want {
		t.Errorf("expected %q, got %q", want, f.String())
	}
}
