package catalog

import "testing"

func TestParseOfferID(t *testing.T) {
	defID, assetID, err := ParseOfferID("def-1:asset-1:e3b0c442")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defID != "def-1" || assetID != "asset-1" {
		t.Fatalf("unexpected parts: %s %s", defID, assetID)
	}
}

func TestParseOfferIDMalformed(t *testing.T) {
	for _, id := range []string{"", "def-1", "def-1:asset-1", ":asset-1:n", "def-1::n", "a:b:c:d"} {
		if _, _, err := ParseOfferID(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}
