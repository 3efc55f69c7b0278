package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dersim/internal/chart"
)

// axisFlags replace the autoscaled P and Q axes of the DER figure.
type axisFlags struct {
	pMin, pMax, qMin, qMax float64
}

func (a *axisFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&a.pMin, "p-min", 0, "Lower limit of the active power axis (pu)")
	fs.Float64Var(&a.pMax, "p-max", 0, "Upper limit of the active power axis (pu)")
	fs.Float64Var(&a.qMin, "q-min", 0, "Lower limit of the reactive power axis (pu)")
	fs.Float64Var(&a.qMax, "q-max", 0, "Upper limit of the reactive power axis (pu)")
}

func (a *axisFlags) options(cmd *cobra.Command) (chart.Options, error) {
	var opts chart.Options
	var err error
	if opts.P, err = axisRange(cmd, "p", a.pMin, a.pMax); err != nil {
		return opts, err
	}
	if opts.Q, err = axisRange(cmd, "q", a.qMin, a.qMax); err != nil {
		return opts, err
	}
	return opts, nil
}

func axisRange(cmd *cobra.Command, axis string, lo, hi float64) (*chart.Range, error) {
	minSet := cmd.Flags().Changed(axis + "-min")
	maxSet := cmd.Flags().Changed(axis + "-max")
	switch {
	case !minSet && !maxSet:
		return nil, nil
	case minSet != maxSet:
		return nil, fmt.Errorf("--%s-min and --%s-max must be given together", axis, axis)
	case lo >= hi:
		return nil, fmt.Errorf("--%s-min must be below --%s-max", axis, axis)
	}
	return &chart.Range{Min: lo, Max: hi}, nil
}
