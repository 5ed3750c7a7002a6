package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.jpl.nasa.gov/bdube/simsync/acquire"
	"github.jpl.nasa.gov/bdube/simsync/daq"
	"github.jpl.nasa.gov/bdube/simsync/trigger"

	"github.com/theckman/yacspin"
)

func readInt(reader *bufio.Reader, prompt string, dflt int) int {
	log.Printf("%s [%d]:", prompt, dflt)
	str, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal(err)
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return dflt
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	reader := bufio.NewReader(os.Stdin)
	log.Println("sequencer exercise against the software DAQ")

	expoUS := readInt(reader, "exposure time, us", 10000)
	frames := readInt(reader, "frames per loop", 9)
	loops := readInt(reader, "number of loops", 3)
	scale := readInt(reader, "time scale (playback runs this many times faster)", 100)

	cfg := trigger.Config{
		DeviceName:    "Dev1",
		ExposureTime:  time.Duration(expoUS) * time.Microsecond,
		FramesPerLoop: frames,
		NumLoops:      loops,
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	frame, err := trigger.NewFrame(cfg)
	if err != nil {
		log.Fatal(err)
	}
	loop, err := trigger.NewLoop(cfg, frame)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("frame: %d samples, loop: %d samples (%.3fs at %.0f Hz)\n",
		frame.Len(), loop.Len(), float64(loop.Len())/cfg.SampleRate, cfg.SampleRate)

	sim := daq.NewSimulated()
	sim.TimeScale = float64(scale)
	sim.ReadyDelay = 2 * time.Millisecond

	orch, err := acquire.New(cfg, sim)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("press enter to run")
	reader.ReadString('\n')

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:     100 * time.Millisecond,
		CharSet:       yacspin.CharSets[59],
		Suffix:        " acquiring",
		StopCharacter: "✓",
		StopColors:    []string{"fgGreen"},
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	done := make(chan struct{})
	go func() {
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				spinner.Message(orch.State().String())
			}
		}
	}()

	res, err := orch.Run(context.Background())
	close(done)
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}
	spinner.Stop()

	fmt.Printf("success: %v\n", res.Success)
	for _, lr := range res.Loops {
		status := "ok"
		if !lr.Success {
			status = lr.Failure.String()
		}
		fmt.Printf("loop %d: %s\n", lr.Index, status)
	}
}
