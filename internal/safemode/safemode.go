// SPDX-License-Identifier: MPL-2.0

// Package safemode decides whether the device booted in safe mode, in which
// case kpmd purges every module instead of loading any.
package safemode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kpmd/kpmd/internal/config"
	"github.com/kpmd/kpmd/internal/logging"

	"github.com/charmbracelet/log"
)

// GetpropPath is the Android system property reader.
const GetpropPath = "getprop"

// DefaultProperties are the properties Android sets in safe mode.
var DefaultProperties = []string{"persist.sys.safemode", "ro.sys.safemode"}

type (
	// Detector answers whether the device is in safe mode. It is consulted
	// once per startup.
	Detector interface {
		InSafeMode(ctx context.Context) (bool, error)
	}

	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Static is a fixed answer, used for the "on" and "off" settings.
	Static bool

	// Auto detects safe mode from marker files and system properties.
	Auto struct {
		// Markers are files whose presence means safe mode.
		Markers []string
		// Properties mean safe mode when getprop returns "1" or "true".
		Properties []string
		// Getprop is the property reader binary. Empty means GetpropPath.
		Getprop string
		// ExecCommand builds the getprop command. nil means exec.CommandContext.
		ExecCommand ExecCommandFunc
		// Logger receives the reason for a positive answer.
		Logger *log.Logger
	}
)

// InSafeMode implements Detector.
func (s Static) InSafeMode(context.Context) (bool, error) {
	return bool(s), nil
}

// InSafeMode implements Detector. Any marker file present, or any property
// reading "1" or "true", means safe mode. A missing getprop binary means the
// properties cannot be set, so it reads as false rather than an error.
func (a *Auto) InSafeMode(ctx context.Context) (bool, error) {
	logger := logging.OrDiscard(a.Logger)

	for _, marker := range a.Markers {
		if _, err := os.Stat(marker); err == nil {
			logger.Info("safe mode marker present", "path", marker)
			return true, nil
		}
	}

	if len(a.Properties) == 0 {
		return false, nil
	}

	getprop := a.Getprop
	if getprop == "" {
		getprop = GetpropPath
	}
	if _, err := exec.LookPath(getprop); err != nil {
		logger.Debug("no property reader, skipping property checks", "getprop", getprop)
		return false, nil
	}

	execCommand := a.ExecCommand
	if execCommand == nil {
		execCommand = exec.CommandContext
	}

	for _, prop := range a.Properties {
		cmd := execCommand(ctx, getprop, prop)
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				continue
			}
			return false, fmt.Errorf("read property %s: %w", prop, err)
		}
		if truthy(stdout.String()) {
			logger.Info("safe mode property set", "property", prop)
			return true, nil
		}
	}
	return false, nil
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true":
		return true
	default:
		return false
	}
}

// FromConfig builds the Detector for a safe mode configuration.
func FromConfig(cfg config.SafeModeConfig, logger *log.Logger) Detector {
	switch cfg.Mode {
	case config.SafeModeOn:
		return Static(true)
	case config.SafeModeOff:
		return Static(false)
	default:
		return &Auto{
			Markers:    cfg.Markers,
			Properties: cfg.Properties,
			Logger:     logger,
		}
	}
}
