package extract

import (
	"errors"
	"testing"
)

func TestSetParsesPlainJSON(t *testing.T) {
	var record Record
	if err := record.Set(`{"relevant_question":"yes","tables_related":["sales"]}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := record.GetString("relevant_question", "no"); got != "yes" {
		t.Fatalf("relevant_question = %q", got)
	}
	tables := record.GetStrings("tables_related", nil)
	if len(tables) != 1 || tables[0] != "sales" {
		t.Fatalf("tables_related = %v", tables)
	}
}

func TestSetParsesFencedBlock(t *testing.T) {
	var record Record
	text := "Sure! Here is the classification you asked for:\n```json\n{\"relevant_question\": \"no\", \"tables_related\": []}\n```\nLet me know if you need anything else."
	if err := record.Set(text); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := record.GetString("relevant_question", ""); got != "no" {
		t.Fatalf("relevant_question = %q", got)
	}
}

func TestSetParsesEmbeddedJSON(t *testing.T) {
	var record Record
	text := `The SQL you need is below {"sql_query":"SELECT 1","scenario":"analysis","error_status":0} hope that helps`
	if err := record.Set(text); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := record.GetString("sql_query", ""); got != "SELECT 1" {
		t.Fatalf("sql_query = %q", got)
	}
}

func TestSetRepairsMalformedJSON(t *testing.T) {
	var record Record
	// Single quotes and a trailing comma, both common in model output.
	text := "{'title': 'Sales by city',}"
	if err := record.Set(text); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := record.GetString("title", ""); got != "Sales by city" {
		t.Fatalf("title = %q", got)
	}
}

func TestSetFailsWithoutPayload(t *testing.T) {
	var record Record
	err := record.Set("I am sorry, I cannot help with that request.")
	if err == nil {
		t.Fatal("expected error for text without payload")
	}
	if !errors.Is(err, ErrNoPayload) {
		t.Fatalf("error = %v, want ErrNoPayload", err)
	}
}

func TestSetReplacesActiveRecord(t *testing.T) {
	var record Record
	if err := record.Set(`{"a":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := record.Set(`{"b":2}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := record.Get("a", "absent"); got != "absent" {
		t.Fatalf("a = %v, want default after replacement", got)
	}
	if got := record.Get("b", nil); got != float64(2) {
		t.Fatalf("b = %v", got)
	}
}

func TestGetManyFallsBackPerKey(t *testing.T) {
	var record Record
	if err := record.Set(`{"sql_query":"SELECT city FROM sales"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	values := record.GetMany(
		[]string{"sql_query", "scenario", "error_status"},
		map[string]any{"sql_query": "", "scenario": "", "error_status": 0},
	)
	if values[0] != "SELECT city FROM sales" {
		t.Fatalf("sql_query = %v", values[0])
	}
	if values[1] != "" {
		t.Fatalf("scenario = %v, want default", values[1])
	}
	if values[2] != 0 {
		t.Fatalf("error_status = %v, want default", values[2])
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"int one", 1, true},
		{"int zero", 0, false},
		{"float one", float64(1), true},
		{"float zero", float64(0), false},
		{"string one", "1", true},
		{"string zero", "0", false},
		{"bool", true, true},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Truthy(tc.value); got != tc.want {
				t.Fatalf("Truthy(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
