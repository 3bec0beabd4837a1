package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cacheleak/calibration"
	"github.com/sarchlab/cacheleak/eviction"
	"github.com/sarchlab/cacheleak/logger"
	"github.com/sarchlab/cacheleak/monitoring"
	"github.com/sarchlab/cacheleak/recording"
	"github.com/sarchlab/cacheleak/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recover the secret planted in a simulated target.",
	Long: "`run` plants the profile's secret in a simulated target, " +
		"recovers it byte by byte, and prints each guess.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		record, _ := flags.GetString("record")
		monitor, _ := flags.GetBool("monitor")
		port, _ := flags.GetInt("monitor-port")
		open, _ := flags.GetBool("open-browser")
		noTable, _ := flags.GetBool("no-table")
		calibrate, _ := flags.GetBool("calibrate")

		return runAttack(runOptions{
			record:    record,
			monitor:   monitor,
			port:      port,
			open:      open,
			noTable:   noTable,
			calibrate: calibrate,
		})
	},
}

type runOptions struct {
	record    string
	monitor   bool
	port      int
	open      bool
	noTable   bool
	calibrate bool
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("record", "",
		"Record rounds and results into the given SQLite database name.")
	runCmd.Flags().Bool("monitor", false,
		"Serve the attack progress over HTTP.")
	runCmd.Flags().Int("monitor-port", 0,
		"Port of the monitoring server. 0 picks a random port.")
	runCmd.Flags().Bool("open-browser", false,
		"Open the monitoring server in a web browser.")
	runCmd.Flags().Bool("no-table", false, "Do not print the summary table.")
	runCmd.Flags().Bool("calibrate", false,
		"Measure the target and use the calibrated hit threshold.")
}

func runAttack(opts runOptions) error {
	log := logger.NewLogger(logLevel, "cacheleak")
	s := newSession(profile)

	log.Noticef("profile %s: %s, %s gadget, %d rounds",
		profile.Name, s.machine.Params(), profile.Gadget.Kind, s.cfg.Rounds)

	if opts.calibrate {
		cal, err := calibrateSession(s)
		if err != nil {
			return err
		}

		log.Noticef("calibrated %s", cal)
		s.cfg.Threshold = cal.Threshold
	}

	console := report.NewConsole(os.Stdout).WithExpected([]byte(profile.Secret))
	if opts.noTable {
		console.WithoutTable()
	}

	o := s.orchestrator(log, console)
	defer o.Teardown()

	if opts.record != "" {
		w := recording.NewWriter(opts.record)
		defer w.Close()

		r := recording.NewRecorder(w)
		r.Start()
		r.RecordProperty("Profile", profile.Name)
		o.AcceptHook(r)

		log.Noticef("recording into %s", w.Filename())
	}

	if opts.monitor {
		m := monitoring.NewMonitor().WithPortNumber(opts.port)
		if opts.open {
			m.WithBrowser()
		}

		m.RegisterObject("orchestrator", o)
		m.RegisterObject("machine", s.machine)
		m.Track(s.cfg.SecretLength, s.cfg.Rounds)
		o.AcceptHook(m)
		m.StartServer()

		defer m.StopServer()
	}

	result := o.Run()

	fmt.Printf("Simulated %d cycles (%s), %d transient runs, %d squashed\n",
		s.machine.Now(), s.machine.Elapsed(), s.core.TransientRuns(),
		s.core.Squashes())

	if len(result.Inconclusive()) == len(result.Bytes) && len(result.Bytes) > 0 {
		log.Warningf("nothing leaked; try a longer delay or --calibrate")
	}

	return nil
}

func calibrateSession(s *session) (calibration.Calibration, error) {
	params := s.machine.Params()
	buffer := eviction.AllocateBuffer(s.machine, params, s.cfg.Multiplier)
	defer s.machine.Release(buffer)

	evictor := eviction.MakeBuilder().
		WithParams(params).
		WithLoader(s.machine).
		WithBuffer(buffer).
		WithMultiplier(s.cfg.Multiplier).
		WithExtendedSweep(s.cfg.ExtendedSweep).
		Build()

	c := calibration.NewCalibrator(s.machine, s.machine, evictor)

	return c.Calibrate(s.layout.Probe.Base, params.BlockBytes, calibrationSamples)
}

const calibrationSamples = 1000
