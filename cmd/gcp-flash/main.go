// gcp-flash drives a full firmware_update() operation (§6) against a
// connected device from the command line, following the teacher's
// cmd/bluetooth-service/main.go flag/log conventions and optionally
// mirroring progress into Redis via internal/statuspublisher the same way
// the teacher mirrors nRF52 state into Redis.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	gcp "github.com/glitchi/gcp-host"
	"github.com/glitchi/gcp-host/internal/pool"
	"github.com/glitchi/gcp-host/internal/statuspublisher"
)

var (
	port        = flag.String("port", "", "serial port the device is attached to (required)")
	imagePath   = flag.String("image", "", "path to the firmware image to send (required)")
	chunkSize   = flag.Int("chunk-size", 0, "FW_DATA chunk size in bytes; 0 uses the recommended default")
	redisAddr   = flag.String("redis-addr", "", "Redis address to publish progress to (optional)")
	redisPass   = flag.String("redis-pass", "", "Redis password")
	redisDB     = flag.Int("redis-db", 0, "Redis database number")
	applyReset  = flag.Bool("reset", false, "send RESET with apply_firmware=true after a successful transfer")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if *port == "" || *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: gcp-flash -port <path> -image <firmware.bin>")
		os.Exit(2)
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("reading firmware image: %v", err)
	}
	log.Printf("loaded firmware image: %d bytes from %s", len(image), *imagePath)

	p := pool.New()
	if _, err := p.Connect(*port); err != nil {
		log.Fatalf("connecting to %s: %v", *port, err)
	}
	defer p.Disconnect(*port)
	log.Printf("connected to %s", *port)

	var publisher *statuspublisher.Publisher
	if *redisAddr != "" {
		publisher, err = statuspublisher.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("connecting to redis: %v", err)
		}
		defer publisher.Close()
		log.Printf("publishing progress to redis at %s", *redisAddr)
	}

	var result gcp.FirmwareResult
	err = p.WithConnection(*port, func(e *gcp.Engine) error {
		tr := e.NewFirmwareTransfer(image, *chunkSize)
		var runErr error
		result, runErr = tr.Run(func(ev gcp.ProgressEvent) {
			log.Printf("[%s] chunk %d/%d (%.1f%%): %s", ev.Stage, ev.CurrentChunk, ev.TotalChunks, ev.Percentage, ev.StatusMessage)
			if publisher != nil {
				if perr := publisher.PublishFirmwareProgress(*port, ev); perr != nil {
					log.Printf("warning: failed to publish progress: %v", perr)
				}
			}
		})
		return runErr
	})
	if err != nil {
		log.Fatalf("firmware update failed: %v (result=%+v)", err, result)
	}
	if !result.Success {
		log.Fatalf("firmware update did not complete successfully: %s", result.Message)
	}
	log.Printf("firmware update succeeded: %s", result.Message)

	if *applyReset {
		err = p.WithConnection(*port, func(e *gcp.Engine) error {
			_, resetErr := e.Reset(true)
			return resetErr
		})
		if err != nil {
			log.Fatalf("RESET after firmware update failed: %v", err)
		}
		log.Printf("device reset to apply firmware")
	}
}
