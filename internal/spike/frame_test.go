package spike

import (
	"errors"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Sample
	}{
		{
			name: "force only",
			line: `{"m":0,"p":[[63,[3.2,0]]]}`,
			want: Sample{Value: 3.2},
		},
		{
			name: "touched",
			line: `{"m":0,"p":[[63,[7.5,1]]]}`,
			want: Sample{Value: 7.5, Touched: true},
		},
		{
			name: "force among other ports",
			line: `{"m":0,"p":[[1,[0]],[63,[2.1,1]],[2,[42,0,0]]]}`,
			want: Sample{Value: 2.1, Touched: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrame([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseFrame(%s): %v", tt.line, err)
			}
			if got != tt.want {
				t.Fatalf("ParseFrame(%s) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseFrameNoSample(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"status frame", `{"m":2,"p":[[63,[3.2,0]]]}`},
		{"no force port", `{"m":0,"p":[[1,[0]],[2,[42]]]}`},
		{"empty payload", `{"m":0,"p":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame([]byte(tt.line)); !errors.Is(err, ErrNoSample) {
				t.Fatalf("ParseFrame(%s) error = %v, want ErrNoSample", tt.line, err)
			}
		})
	}
}

func TestParseFrameMalformed(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"m":0,"p":[[63`)); err == nil {
		t.Fatal("truncated frame should fail")
	}

	_, err := ParseFrame([]byte(`not json`))
	if err == nil {
		t.Fatal("non-JSON frame should fail")
	}
	if errors.Is(err, ErrNoSample) {
		t.Fatal("malformed frame must not look like a sample-less frame")
	}
}

func TestParseFrameBadForcePayload(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"m":0,"p":[[63,[3.2]]]}`)); err == nil {
		t.Fatal("force payload without contact flag should fail")
	}
}
