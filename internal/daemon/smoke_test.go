package daemon

import (
	"fmt"
	"os"
	"testing"
)

// TestLiveDaemonConnection connects to a running daemon and tests basic commands.
// Skipped if the daemon socket doesn't exist.
func TestLiveDaemonConnection(t *testing.T) {
	sockPath := SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("daemon not running (no socket at", sockPath, ")")
	}

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	fmt.Println("Connected to daemon")

	resp, err := client.SendCommand(Command{Cmd: CmdHistory})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !resp.OK {
		t.Fatalf("history not ok: %s", resp.Error)
	}
	fmt.Printf("History: %d entries\n", len(resp.Entries))

	// Subscribe on a second connection, then close (just verify it responds OK)
	client2, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect for subscribe: %v", err)
	}
	defer client2.Close()

	resp, err = client2.SendCommand(Command{Cmd: CmdSubscribe, Events: []string{EventHistory}})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !resp.OK {
		t.Fatalf("subscribe not ok: %s", resp.Error)
	}
	fmt.Println("Subscribe: ok")
}
