// Package roboarm controls a 6-axis robotic arm driven by a microcontroller
// that speaks a small G-code dialect over HTTP or a serial line.
//
// # Installation
//
//	go install github.com/gwillem/roboarm/cmd/roboarm@latest
//
// # Usage
//
// Find the controller and save its address and motor calibration:
//
//	roboarm setup
//
// Then drive the arm:
//
//	roboarm enable
//	roboarm move --j1 1000 --j2 500 --wait
//	roboarm status
//	roboarm --url serial:///dev/ttyUSB0 home
//
// Without hardware, serve an emulated controller and point the CLI at it:
//
//	roboarm simulate --listen 127.0.0.1:8080
//	roboarm --url http://127.0.0.1:8080 status
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/roboarm: CLI front-end
//   - pkg/protocol: joint ids, command encoding and reply parsing
//   - pkg/transport: HTTP and serial transports
//   - pkg/robot: arm client, configuration and calibration
//   - pkg/monitor: background status poller for live views
//   - pkg/emulator: software controller for tests and the simulate command
package roboarm
