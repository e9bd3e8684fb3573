package main

import (
	"context"
	"testing"

	"puzzle-pals-server/config"
	"puzzle-pals-server/store"
)

func TestOpenStoreSelectsBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreBackend = "memory"

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStore memory: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*store.Memory); !ok {
		t.Errorf("got %T, want *store.Memory", st)
	}

	cfg.StoreBackend = "carrier-pigeon"
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Error("unknown backend accepted")
	}
}
