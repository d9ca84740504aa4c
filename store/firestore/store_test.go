package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/xraph/storefront/store"
	"github.com/xraph/storefront/store/storetest"
)

// newEmulatorStore connects to the Firestore emulator named by
// FIRESTORE_EMULATOR_HOST. Each call uses its own project so subtests never
// see each other's documents.
func newEmulatorStore(t *testing.T) store.Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	project := fmt.Sprintf("storefront-test-%d", time.Now().UnixNano())
	client, err := firestore.NewClient(context.Background(), project)
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	s := New(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConfirmPayment(t *testing.T) {
	storetest.RunConfirmPayment(t, newEmulatorStore)
}

func TestNilClient(t *testing.T) {
	s := New(nil)
	if err := s.Migrate(context.Background()); err != errNilClient {
		t.Errorf("Migrate err = %v, want errNilClient", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close err = %v", err)
	}
}
