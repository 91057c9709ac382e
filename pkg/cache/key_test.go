package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint only",
			key:  Key{Endpoint: "/vehicles"},
			want: "pagekit:vehicles",
		},
		{
			name: "query params sorted by name",
			key: Key{
				Endpoint: "/images",
				Query:    url.Values{"page": {"2"}, "limit": {"10"}},
			},
			want: "pagekit:images:limit=10:page=2",
		},
		{
			name: "multi-valued param sorted",
			key: Key{
				Endpoint: "/vehicles/",
				Query:    url.Values{"location": {"MUC", "BER"}},
			},
			want: "pagekit:vehicles:location=BER,MUC",
		},
		{
			name: "empty endpoint",
			key:  Key{Query: url.Values{"a": {"1"}}},
			want: "pagekit:a=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("Key.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey_StringDoesNotMutateQuery(t *testing.T) {
	q := url.Values{"location": {"MUC", "BER"}}
	_ = Key{Endpoint: "/vehicles", Query: q}.String()

	if q["location"][0] != "MUC" {
		t.Errorf("query values reordered: %v", q["location"])
	}
}

func TestKey_Determinism(t *testing.T) {
	key := Key{
		Endpoint: "/vehicles",
		Query: url.Values{
			"pickupDate":     {"2024-05-01"},
			"pickupLocation": {"MUC"},
			"returnDate":     {"2024-05-04"},
			"returnLocation": {"BER"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("String() = %v, want %v (not deterministic)", got, first)
		}
	}
}
