package db

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// TestLiveDatabase opens the real history database and lists its entries.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	fmt.Printf("History entries: %d\n", len(entries))
	for i, e := range entries {
		if i == 10 {
			fmt.Println("  ...")
			break
		}
		star := " "
		if e.Favorite {
			star = "*"
		}
		fmt.Printf("  %s %d. [%s] %s (%d words)\n", star, e.ID,
			e.Timestamp.Format("2006-01-02 15:04:05"), e.DisplayText(), e.WordCount)
	}
}
