package metrics

import "testing"

func TestStatementKind(t *testing.T) {
	cases := map[string]string{
		"":                           "UNKNOWN",
		"select * from tasks":        "SELECT",
		"\n  UPDATE tasks SET x = 1": "UPDATE",
	}
	for in, want := range cases {
		if got := statementKind(in); got != want {
			t.Errorf("statementKind(%q) = %q, want %q", in, got, want)
		}
	}
}
