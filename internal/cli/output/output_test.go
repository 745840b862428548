package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	if _, ok := NewFormatter("unknown").(*TableFormatter); !ok {
		t.Error("expected TableFormatter")
	}
}

type addressResult struct {
	Coordinator string `json:"coordinator"`
	Address     string `json:"address"`
}

func TestTableFormatter_Object(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Format(&buf, addressResult{Coordinator: "10.0.0.1:5555", Address: "10.0.0.1:5555"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "KEY") || !strings.HasPrefix(lines[1], "ADDRESS") || !strings.HasPrefix(lines[2], "COORDINATOR") {
		t.Errorf("unexpected table:\n%s", buf.String())
	}
}

func TestTableFormatter_Table(t *testing.T) {
	tbl := NewTable("NAME", "TRAIN", "VAL")
	tbl.AddRow("imagenet", 1281167, 50000)

	var buf bytes.Buffer
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	if got := strings.Fields(buf.String()); strings.Join(got, " ") != "imagenet 1281167 50000" {
		t.Errorf("row = %q", buf.String())
	}
}

func TestTableFormatter_List(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, []string{"imagenet", "tiny"}); err != nil {
		t.Fatal(err)
	}
	if want := "VALUE\nimagenet\ntiny\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{Compact: true}).Format(&buf, addressResult{Address: "a:1"}); err != nil {
		t.Fatal(err)
	}
	if want := `{"coordinator":"","address":"a:1"}` + "\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, addressResult{Coordinator: "host-a", Address: "host-b"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "address: host-b") || !strings.Contains(out, "coordinator: host-a") {
		t.Errorf("unexpected yaml:\n%s", out)
	}

	buf.Reset()
	if err := (&YAMLFormatter{}).Format(&buf, []string{"imagenet"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "items:") {
		t.Errorf("list not wrapped:\n%s", buf.String())
	}
}
