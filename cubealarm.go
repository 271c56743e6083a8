// Package cubealarm connects to a GAN Gen3 smart cube over Bluetooth Low
// Energy and reports its moves and solved state. Its original purpose is a
// wake-up alarm that only goes quiet once the cube is solved, but the
// monitor is a general telemetry client.
//
// # Quick Start
//
// Watch a cube and react to solves:
//
//	mon, err := cubealarm.New("CF:AA:79:C9:96:9C")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mon.OnMove(func(m cubealarm.Move) {
//	    fmt.Println("Move:", m)
//	})
//	mon.OnSolved(func() {
//	    fmt.Println("Solved!")
//	})
//	if err := mon.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer mon.Close()
//
//	select {}
//
// The monitor scans for the configured address, connects, decrypts the
// cube's notification stream and keeps the connection alive, reconnecting
// automatically when it drops.
//
// # Alarm Use
//
// Wire a Sounder and the monitor silences it on solve:
//
//	mon, _ := cubealarm.New(addr, cubealarm.WithSounder(buzzer))
//
// Everything protocol-level (key derivation, frame cipher, state decoding)
// lives in internal packages; this package exposes decoded events only.
package cubealarm
