package value

import "testing"

func TestAddOverloads(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want Value
	}{
		{"int+int", Int(2), Int(3), Int(5)},
		{"float+int", Float(2.5), Int(1), Float(3.5)},
		{"str+str", Str("Hello"), Str(" World"), Str("Hello World")},
		{"str+int", Str("n="), Int(5), Str("n=5")},
		{"list+list", List([]Value{Int(1)}), List([]Value{Int(2)}), List([]Value{Int(1), Int(2)})},
		{"null+int", Null, Int(5), Null},
		{"int+null", Int(5), Null, Null},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Add(tc.a, tc.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !Equal(got, tc.want) {
				t.Fatalf("Add(%v,%v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestAddTypeMismatch(t *testing.T) {
	_, err := Add(Bool(true), Int(1))
	if err == nil {
		t.Fatal("expected error for bool+int")
	}
}

func TestSliceHalfOpenNegative(t *testing.T) {
	list := []Value{Int(1), Int(2), Int(3), Int(4), Int(5)}
	got := Slice(list, 1, true, 3, true)
	want := []Value{Int(2), Int(3)}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range got {
		if !Equal(got[i], want[i]) {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestIndexNegative(t *testing.T) {
	list := []Value{Int(10), Int(20), Int(30)}
	v, ok := Index(list, -1)
	if !ok || v.Int() != 30 {
		t.Fatalf("Index(-1) = %v, %v", v, ok)
	}
}

func TestCompareMixedNumeric(t *testing.T) {
	cmp, ok := Compare(Int(2), Float(2.5))
	if !ok || cmp >= 0 {
		t.Fatalf("Compare(2, 2.5) = %d, %v", cmp, ok)
	}
}

func TestTruthyThreeValued(t *testing.T) {
	if _, known := Null.Truthy(); known {
		t.Fatal("null should not be known-truthy")
	}
	if v, known := Bool(true).Truthy(); !known || !v {
		t.Fatal("bool true should be known-truthy")
	}
}

func TestEqualNull(t *testing.T) {
	// Equal() is a structural identity helper, distinct from 3VL `=`.
	if !Equal(Null, Null) {
		t.Fatal("Equal(Null, Null) should be true for structural comparison")
	}
}
