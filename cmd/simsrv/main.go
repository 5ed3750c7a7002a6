package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.jpl.nasa.gov/bdube/simsync/acquire"
	"github.jpl.nasa.gov/bdube/simsync/daq"
	"github.jpl.nasa.gov/bdube/simsync/server/middleware/locker"
	"github.jpl.nasa.gov/bdube/simsync/trigger"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"goji.io"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "sim-sync.yml"
	k              = koanf.New(".")
)

type sequence struct {
	// ExposureTimeUS is the camera exposure per frame in microseconds
	ExposureTimeUS int `yaml:"ExposureTimeUS"`

	// FramesPerLoop is the number of SIM raw frames per loop
	FramesPerLoop int `yaml:"FramesPerLoop"`

	// NumLoops is the number of loops to acquire per run
	NumLoops int `yaml:"NumLoops"`

	// SampleRate is the output sample clock in Hz
	SampleRate float64 `yaml:"SampleRate"`

	// TriggerEdgeWidth is the SLM pulse width in samples
	TriggerEdgeWidth int `yaml:"TriggerEdgeWidth"`

	// PostExposureGap is the settling gap after each exposure in samples
	PostExposureGap int `yaml:"PostExposureGap"`

	// ReadyChannel is the analog input channel carrying camera-ready
	ReadyChannel int `yaml:"ReadyChannel"`

	// ReadyThreshold is the camera-ready comparison level in volts
	ReadyThreshold float64 `yaml:"ReadyThreshold"`

	// ReadyTimeoutMS bounds each camera-ready wait, milliseconds
	ReadyTimeoutMS int `yaml:"ReadyTimeoutMS"`

	// LoopSpacingMS is the target start-to-start loop interval, milliseconds.
	// Zero disables pacing.
	LoopSpacingMS int `yaml:"LoopSpacingMS"`
}

type simulation struct {
	// TimeScale divides simulated playback durations; 0 or 1 is real time
	TimeScale float64 `yaml:"TimeScale"`

	// ReadyDelayMS is how long the simulated camera takes to assert ready
	ReadyDelayMS int `yaml:"ReadyDelayMS"`
}

type config struct {
	Addr       string     `yaml:"Addr"`
	Root       string     `yaml:"Root"`
	Device     string     `yaml:"Device"`
	Simulated  bool       `yaml:"Simulated"`
	Sequence   sequence   `yaml:"Sequence"`
	Simulation simulation `yaml:"Simulation"`

	// ContinueOnReadyTimeout keeps a run going when one loop's camera-ready
	// wait times out instead of aborting the remainder
	ContinueOnReadyTimeout bool `yaml:"ContinueOnReadyTimeout"`
}

func (c config) trigger() trigger.Config {
	s := c.Sequence
	return trigger.Config{
		DeviceName:       c.Device,
		ExposureTime:     time.Duration(s.ExposureTimeUS) * time.Microsecond,
		FramesPerLoop:    s.FramesPerLoop,
		NumLoops:         s.NumLoops,
		SampleRate:       s.SampleRate,
		TriggerEdgeWidth: s.TriggerEdgeWidth,
		PostExposureGap:  s.PostExposureGap,
		ReadyChannel:     s.ReadyChannel,
		ReadyThreshold:   s.ReadyThreshold,
		ReadyTimeout:     time.Duration(s.ReadyTimeoutMS) * time.Millisecond,
		LoopSpacing:      time.Duration(s.LoopSpacingMS) * time.Millisecond,
	}
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:      ":8000",
		Root:      "/",
		Device:    "Dev1",
		Simulated: true,
		Sequence: sequence{
			ExposureTimeUS: 10000,
			FramesPerLoop:  9,
			NumLoops:       1,
			ReadyTimeoutMS: 5000,
		},
		Simulation: simulation{
			TimeScale:    1000,
			ReadyDelayMS: 5,
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `sim-sync exposes a structured illumination trigger sequencer over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	sim-sync <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `sim-sync is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.
There is no need to do this unless you want to start from the prepopulated defaults when making
a config file.

Zero-valued tuning fields in the Sequence block (SampleRate, TriggerEdgeWidth,
PostExposureGap, ReadyThreshold) are filled with the package defaults at bootup,
so the generated config showing zeros for them is not a mistake.

Simulated true runs against a software DAQ that plays waveforms against the wall
clock (divided by Simulation.TimeScale) and ramps the camera-ready voltage after
Simulation.ReadyDelayMS.  Connecting real NI hardware requires an adapter built
against the vendor driver, which this binary does not link.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("sim-sync version %v\n", Version)
}

// probe checks that the adapter can actually claim the output port and the
// ready channel before we advertise the server.  Retried with an exponential
// backoff; a freshly rebooted DAQ chassis can hold its resources for a
// second or two after enumeration.
func probe(a daq.Adapter, cfg trigger.Config) error {
	op := func() error {
		task, err := a.PrepareOutput(cfg.DeviceName, cfg.SampleRate, []uint16{0})
		if err != nil {
			return err
		}
		task.Release()
		in, err := a.PrepareInput(cfg.DeviceName, cfg.ReadyChannel, cfg.SampleRate)
		if err != nil {
			return err
		}
		in.Release()
		return nil
	}
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      5 * time.Second,
		Clock:               backoff.SystemClock})
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)
	if !cfg.Simulated {
		log.Fatal("Simulated false requires an NI adapter linked against the vendor driver; this build only carries the software DAQ")
	}
	sim := daq.NewSimulated()
	sim.TimeScale = cfg.Simulation.TimeScale
	sim.ReadyDelay = time.Duration(cfg.Simulation.ReadyDelayMS) * time.Millisecond

	tcfg := cfg.trigger()
	tcfg.ApplyDefaults()
	if err := tcfg.Validate(); err != nil {
		log.Fatal(err)
	}
	log.Println("probing DAQ resources")
	if err := probe(sim, tcfg); err != nil {
		log.Fatal("DAQ probe failed: ", err)
	}

	orch, err := acquire.New(tcfg, sim)
	if err != nil {
		log.Fatal(err)
	}
	orch.ContinueOnReadyTimeout = cfg.ContinueOnReadyTimeout
	w := acquire.NewHTTPWrapper(orch)
	lock := locker.New()
	locker.Inject(w, lock)

	// clean up the submux string, "sim" => "/sim/"
	hndlrS := cfg.Root
	if !strings.HasPrefix(hndlrS, "/") {
		hndlrS = "/" + hndlrS
	}
	if !strings.HasSuffix(hndlrS, "/") {
		hndlrS = hndlrS + "/"
	}
	rootR := chi.NewRouter()
	rootR.Use(middleware.Logger)
	mux := goji.NewMux()
	mux.Use(lock.Check)
	w.RT().Bind(mux)
	// goji matches on URL.Path, so the mount prefix has to come off first
	rootR.Mount(hndlrS, http.StripPrefix(strings.TrimSuffix(hndlrS, "/"), mux))
	addr := cfg.Addr + cfg.Root
	log.Println("now listening for requests at ", addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, rootR))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
