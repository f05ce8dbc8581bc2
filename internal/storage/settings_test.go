package storage

import "testing"

func TestSetAndGetSetting(t *testing.T) {
	store := newTestStore(t)

	if _, ok, err := store.GetSetting("missing"); err != nil || ok {
		t.Fatalf("expected missing key to be absent, ok=%v err=%v", ok, err)
	}

	if err := store.SetSetting("rpc_pass:BTC", "encrypted-blob-v1"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	value, ok, err := store.GetSetting("rpc_pass:BTC")
	if err != nil || !ok {
		t.Fatalf("expected key to be present, ok=%v err=%v", ok, err)
	}
	if value != "encrypted-blob-v1" {
		t.Errorf("got %q, want %q", value, "encrypted-blob-v1")
	}

	if err := store.SetSetting("rpc_pass:BTC", "encrypted-blob-v2"); err != nil {
		t.Fatalf("SetSetting (update): %v", err)
	}
	value, _, _ = store.GetSetting("rpc_pass:BTC")
	if value != "encrypted-blob-v2" {
		t.Errorf("expected updated value, got %q", value)
	}
}
