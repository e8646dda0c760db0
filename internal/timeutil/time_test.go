package timeutil

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

func TestParseInt64Timeutil(t *testing.T) {
	var tt Time
	b := []byte(`1675277158`)
	err := json.Unmarshal(b, &tt)
	if err != nil {
		t.Fatalf("error while parsing: %+v\n", err)
	}
	if string(b) != strconv.FormatInt(time.Time(tt).Unix(), 10) {
		t.Fatalf("wanted: %+v, got: %+v\n", string(b), time.Time(tt).Unix())
	}
}

func TestParseStringTimeutil(t *testing.T) {
	var tt Time
	b := []byte(`"2023-01-01T12:00:00+00:00"`)
	err := json.Unmarshal(b, &tt)
	if err != nil {
		t.Fatalf("error while parsing: %+v\n", err)
	}
	ttf := time.Time(tt).Format(`"2006-01-02T15:04:05-07:00"`)
	if string(b) != ttf {
		t.Fatalf("wanted: %+v, got: %+v\n", string(b), ttf)
	}
}

func TestMarshalTimeutil(t *testing.T) {
	tests := []struct {
		name string
		t    Time
		want string
	}{
		{name: "zero", t: Time{}, want: `0`},
		{name: "unset epoch", t: Unix(0), want: `0`},
		{name: "epoch", t: Unix(1675277158), want: `1675277158`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.t)
			if err != nil {
				t.Fatalf("error while marshaling: %+v\n", err)
			}
			if string(b) != tt.want {
				t.Fatalf("wanted: %s, got: %s\n", tt.want, string(b))
			}
		})
	}
}

func TestEqualTimeutil(t *testing.T) {
	var tt Time
	if err := json.Unmarshal([]byte(`"2023-01-01T12:00:00+00:00"`), &tt); err != nil {
		t.Fatalf("error while parsing: %+v\n", err)
	}
	if !tt.Equal(Unix(1672574400)) {
		t.Fatalf("wanted the same instant, got: %d\n", tt.Unix())
	}
	if tt.Equal(Time{}) {
		t.Fatal("a set time shouldn't equal the zero time")
	}
}
