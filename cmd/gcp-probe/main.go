// gcp-probe restores the original source's standalone COM-port discovery
// and HELLO/GET_STATUS self-test (src-tauri/src/com_port_test.rs) as a real
// CLI, following the flag-parsing and log.Printf style of the teacher's
// cmd/bluetooth-service/main.go (see SPEC_FULL.md §4 "Supplemented
// Features").
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	gcp "github.com/glitchi/gcp-host"
	"github.com/glitchi/gcp-host/internal/discovery"
	"github.com/glitchi/gcp-host/internal/portcache"
	"github.com/glitchi/gcp-host/internal/uart"
)

var (
	portName  = flag.String("port", "", "serial port to HELLO/GET_STATUS probe; if empty, only lists ports")
	cachePath = flag.String("cache", "", "path to a port-list cache file (optional)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var hints map[string]discovery.PortInfo
	var cache *portcache.Cache
	if *cachePath != "" {
		cache = portcache.New(*cachePath)
		hints = cache.Load()
	}

	ports, err := discovery.List(hints)
	if err != nil {
		log.Fatalf("discovering ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found on this system")
	} else {
		fmt.Printf("found %d port(s):\n\n", len(ports))
		for i, p := range ports {
			fmt.Printf("--- Port %d ---\n", i+1)
			fmt.Printf("Name: %s\n", p.PortName)
			fmt.Printf("Type: %s\n", p.Type)
			if p.Description != "" {
				fmt.Printf("Description: %s\n", p.Description)
			}
			if p.Manufacturer != "" {
				fmt.Printf("Manufacturer: %s\n", p.Manufacturer)
			}
			if p.SerialNumber != "" {
				fmt.Printf("Serial Number: %s\n", p.SerialNumber)
			}
			if p.VendorID != "" {
				fmt.Printf("VID: %s\n", p.VendorID)
			}
			if p.ProductID != "" {
				fmt.Printf("PID: %s\n", p.ProductID)
			}
			fmt.Println()
		}
	}

	if cache != nil {
		if err := cache.Save(ports); err != nil {
			log.Printf("warning: failed to save port cache: %v", err)
		}
	}

	if *portName == "" {
		return
	}

	log.Printf("probing %s", *portName)
	h, err := uart.Open(*portName)
	if err != nil {
		log.Fatalf("opening %s: %v", *portName, err)
	}
	defer h.Close()

	e := gcp.NewEngine(h)

	hw, err := e.Hello()
	if err != nil {
		log.Fatalf("HELLO failed: %v", err)
	}
	fmt.Printf("HELLO ok: board_type=0x%02x hw_rev=0x%02x chip_model=0x%02x serial=%d\n",
		hw.BoardType, hw.HWRevision, hw.ChipModel, hw.SerialNumber)

	status, err := e.GetStatus()
	if err != nil {
		log.Fatalf("GET_STATUS failed: %v", err)
	}
	fmt.Printf("GET_STATUS ok: battery=%d%% state=0x%02x rtc=20%02d-%02d-%02d %02d:%02d:%02d\n",
		status.BatteryLevel, status.SystemState,
		status.RTC.Year, status.RTC.Month, status.RTC.Day,
		status.RTC.Hour, status.RTC.Minute, status.RTC.Second)

	fv, err := e.GetFwVersion()
	if err != nil {
		log.Fatalf("GET_FW_VER failed: %v", err)
	}
	fmt.Printf("GET_FW_VER ok: %s\n", fv.String())

	os.Exit(0)
}
