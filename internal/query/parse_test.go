package query

import "testing"

func TestParseSeparatesTermsAndConstraints(t *testing.T) {
	p, err := Parse(`timeout producer:api greed:5 level:error`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "timeout" {
		t.Fatalf("terms = %v", p.Terms)
	}
	if p.Greed == nil || *p.Greed != 5 {
		t.Fatalf("greed = %v, want 5", p.Greed)
	}
	want := map[string]string{"producer": "api", "level": "error"}
	if len(p.FieldConstraints) != 2 {
		t.Fatalf("constraints = %v", p.FieldConstraints)
	}
	for _, c := range p.FieldConstraints {
		if want[c.Key] != c.Value {
			t.Fatalf("constraint %+v unexpected", c)
		}
	}
}

func TestParseQuotedValueWithSpaces(t *testing.T) {
	p, err := Parse(`msg:"connection refused" auth`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.FieldConstraints) != 1 || p.FieldConstraints[0].Value != "connection refused" {
		t.Fatalf("constraints = %v", p.FieldConstraints)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "auth" {
		t.Fatalf("terms = %v", p.Terms)
	}
}

func TestParseUnbalancedQuotesIsMalformed(t *testing.T) {
	_, err := Parse(`msg:"unterminated`)
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestParseInvalidGreedIsMalformed(t *testing.T) {
	_, err := Parse(`greed:99`)
	if err == nil {
		t.Fatal("expected a parse error for out-of-range greed")
	}
	_, err = Parse(`greed:abc`)
	if err == nil {
		t.Fatal("expected a parse error for non-numeric greed")
	}
}

func TestParseEmptyQueryYieldsNoTerms(t *testing.T) {
	p, err := Parse("   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Terms) != 0 || len(p.FieldConstraints) != 0 || p.Greed != nil {
		t.Fatalf("p = %+v, want all zero", p)
	}
}
