package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"dersim/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestStudyEndToEnd(t *testing.T) {
	dir := t.TempDir()
	derFile := filepath.Join(dir, "DER.txt")
	profile := filepath.Join(dir, "profile.yaml")
	out := filepath.Join(dir, "out")
	assert.NilError(t, os.WriteFile(profile, []byte("engine: virtual\noutput_dir: "+out+"\n"), 0o644))

	stdout, err := execute(t, "configure", "--config", derFile, "--mode", "volt_var", "--steps", "7", "--log-level", "warn")
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(stdout, "saved "+derFile))
	cfg, err := config.NewStore(derFile).Load()
	assert.NilError(t, err)
	assert.Equal(t, cfg.ControlMode, config.ModeVoltVar)

	logFile := filepath.Join(dir, "samples.jsonl")
	transcript := filepath.Join(dir, "run.dss")
	_, err = execute(t, "simulate", "--config", derFile, "--profile", profile,
		"--print-only", "--json", "--plot", "--log-file", logFile, "--transcript", transcript)
	assert.NilError(t, err)
	for _, name := range []string{"data_volt_var.csv", "der_volt_var.png", "curve_volt_var.png"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NilError(t, err, name)
	}
	script, err := os.ReadFile(transcript)
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(string(script), "compile"))

	_, err = execute(t, "replay", "--input", logFile, "--print-only", "--json", "--speed", "0")
	assert.NilError(t, err)

	stdout, err = execute(t, "script", "--config", derFile, "--profile", profile)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(stdout, "New PVSystem.PV"))
}

func TestSimulateMissingConfig(t *testing.T) {
	_, err := execute(t, "script", "--config", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "missing.txt")
}

func TestAxisFlagsRequirePairs(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "plot", "--dir", dir, "--p-min", "0")
	assert.ErrorContains(t, err, "--p-min and --p-max")
	assert.NilError(t, plotCmd.Flags().Set("p-max", "-1"))
	_, err = execute(t, "plot", "--dir", dir, "--p-min", "0")
	assert.ErrorContains(t, err, "must be below")
}
