package cli

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/pshapiro/cubealarm/internal/ble"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby Bluetooth devices",
	Long: `Scan for nearby Bluetooth LE devices and list their addresses.

GAN cubes advertise with names starting with "GAN"; use the printed address
as cube.address in the config file.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Second, "How long to scan")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	tr, err := ble.NewAdapter()
	if err != nil {
		return fmt.Errorf("BLE not available: %w", err)
	}

	type found struct {
		addr string
		rssi int16
	}
	var mu sync.Mutex
	seen := make(map[string]found)
	done := make(chan struct{})

	tr.SetEventHandler(func(e ble.Event) {
		switch e.Type {
		case ble.EventScanResult:
			mu.Lock()
			if prev, ok := seen[e.Addr]; !ok || e.RSSI > prev.rssi {
				seen[e.Addr] = found{addr: e.Addr, rssi: e.RSSI}
			}
			mu.Unlock()
		case ble.EventScanDone:
			close(done)
		}
	})

	fmt.Printf("Scanning for %s...\n", scanTimeout)
	if err := tr.StartScan(ble.ScanParams{Duration: scanTimeout}); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	<-done

	mu.Lock()
	results := make([]found, 0, len(seen))
	for _, f := range seen {
		results = append(results, f)
	}
	mu.Unlock()

	if len(results) == 0 {
		fmt.Println("No devices found. Rotate the cube to wake it up and try again.")
		return nil
	}

	// Strongest signal first.
	sort.Slice(results, func(i, j int) bool { return results[i].rssi > results[j].rssi })

	fmt.Printf("%-20s %s\n", "ADDRESS", "RSSI")
	for _, f := range results {
		fmt.Printf("%-20s %d dBm\n", f.addr, f.rssi)
	}
	return nil
}
