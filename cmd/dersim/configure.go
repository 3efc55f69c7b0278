package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dersim/internal/config"
	"dersim/internal/form"
)

var (
	cfgInteractive bool
	cfgSteadyState bool
	cfgValues      config.SimulationConfig
	cfgMode        string
	cfgNormalCat   string
	cfgAbnormalCat string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the DER parameter file",
	Long:  "configure updates the DER parameter file from flags, or opens an interactive form when no parameter flags are given on a terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := config.NewStore(configPath)
		cfg, err := store.Load()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			def := config.Default()
			cfg = &def
		case err != nil:
			return fmt.Errorf("load %s: %w", store.Path, err)
		}

		changed := applyConfigureFlags(cmd, cfg)
		interactive := cfgInteractive || (!changed && term.IsTerminal(int(os.Stdin.Fd())))
		if interactive {
			if cfg, err = form.Run(*cfg); err != nil {
				return err
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := store.Save(*cfg); err != nil {
			return fmt.Errorf("save %s: %w", store.Path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", store.Path)
		return nil
	},
}

// applyConfigureFlags copies every parameter flag the user set into cfg and
// reports whether any was set.
func applyConfigureFlags(cmd *cobra.Command, cfg *config.SimulationConfig) bool {
	f := cmd.Flags()
	changed := false
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
			changed = true
		}
	}
	set("simulation-time", func() { cfg.SimulationTime = cfgValues.SimulationTime })
	set("steps", func() { cfg.NumberSteps = cfgValues.NumberSteps })
	set("points-per-step", func() { cfg.PointsPerStep = cfgValues.PointsPerStep })
	set("der", func() { cfg.DEREnabled = cfgValues.DEREnabled })
	set("bus", func() { cfg.BusID = cfgValues.BusID })
	set("rated-kv", func() { cfg.RatedVoltageKV = cfgValues.RatedVoltageKV })
	set("line", func() { cfg.LineID = cfgValues.LineID })
	set("mode", func() { cfg.ControlMode = config.ControlMode(cfgMode) })
	set("s-rated", func() { cfg.RatedApparentPowerMVA = cfgValues.RatedApparentPowerMVA })
	set("pf-rated", func() { cfg.RatedPowerFactor = cfgValues.RatedPowerFactor })
	set("const-q", func() { cfg.ConstantReactivePower = cfgValues.ConstantReactivePower })
	set("normal-cat", func() { cfg.NormalCategory = config.NormalCategory(cfgNormalCat) })
	set("abnormal-cat", func() { cfg.AbnormalCategory = config.AbnormalCategory(cfgAbnormalCat) })
	set("steady-state", func() {
		if cfgSteadyState {
			cfg.SimulationTime = config.SteadyStateTime
			cfg.NumberSteps = 0
		}
	})
	return changed
}

func init() {
	def := config.Default()
	flags := configureCmd.Flags()
	flags.BoolVarP(&cfgInteractive, "interactive", "i", false, "Edit the parameters in a form")
	flags.Float64Var(&cfgValues.SimulationTime, "simulation-time", def.SimulationTime, "Simulated time (s)")
	flags.IntVar(&cfgValues.NumberSteps, "steps", def.NumberSteps, "Number of load steps (0 for steady state)")
	flags.IntVar(&cfgValues.PointsPerStep, "points-per-step", def.PointsPerStep, "Solver points per load step")
	flags.BoolVar(&cfgValues.DEREnabled, "der", def.DEREnabled, "Connect the DER")
	flags.StringVar(&cfgValues.BusID, "bus", def.BusID, "Bus the DER connects to")
	flags.Float64Var(&cfgValues.RatedVoltageKV, "rated-kv", def.RatedVoltageKV, "Rated line-to-line voltage (kV)")
	flags.StringVar(&cfgValues.LineID, "line", def.LineID, "Line monitored without DER")
	flags.StringVar(&cfgMode, "mode", string(def.ControlMode), "DER control mode")
	flags.Float64Var(&cfgValues.RatedApparentPowerMVA, "s-rated", def.RatedApparentPowerMVA, "DER rated apparent power (MVA)")
	flags.Float64Var(&cfgValues.RatedPowerFactor, "pf-rated", def.RatedPowerFactor, "DER rated power factor")
	flags.Float64Var(&cfgValues.ConstantReactivePower, "const-q", def.ConstantReactivePower, "Reactive power setpoint for constant_var (pu)")
	flags.StringVar(&cfgNormalCat, "normal-cat", string(def.NormalCategory), "IEEE 1547 normal operating category (A, B)")
	flags.StringVar(&cfgAbnormalCat, "abnormal-cat", string(def.AbnormalCategory), "IEEE 1547 abnormal operating category (I, II, III)")
	flags.BoolVar(&cfgSteadyState, "steady-state", false, "Run a one day steady-state study")
}
