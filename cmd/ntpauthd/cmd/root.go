/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

// RootCmd is the main entry point. It's exported so a wrapper binary could
// extend it without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "ntpauthd",
	Short: "authoritative NTP-derived time service",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	RootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return applyLogLevel(logLevel)
	}
}

func applyLogLevel(level string) error {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return &unrecognizedLogLevelError{level: level}
	}
	return nil
}

type unrecognizedLogLevelError struct{ level string }

func (e *unrecognizedLogLevelError) Error() string {
	return "unrecognized log level: " + e.level
}

// Execute is the CLI entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
