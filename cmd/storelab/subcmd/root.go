/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/storelab/kernel/metrics"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/output"
	"github.com/openziti/storelab/kernel/session"
	"github.com/openziti/storelab/kernel/transport"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&rootOptions.ConfigPath, "config", "", "path to config file (default ~/.storelab/config.yml)")
	flags.StringVar(&rootOptions.ServerURL, "server", "", "orchestrator base url")
	flags.StringVarP(&rootOptions.Output, "output", "o", "", "output format: table, json, yaml or jsonpath=<expr>")
	flags.StringVar(&rootOptions.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.DurationVar(&rootOptions.Timeout, "timeout", 0, "request timeout (default max(2x poll interval, 10s))")
}

var RootCmd = &cobra.Command{
	Use:   "storelab",
	Short: "Provision and manage e-commerce stores on a store orchestrator",
	Long: `storelab talks to a store orchestrator over its REST API. It lists,
creates and deletes stores, fetches admin credentials, shows the audit trail
and offers a live terminal dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rootOptions.Config()
		if err != nil {
			return err
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return errors.Wrapf(err, "invalid log level '%s'", cfg.LogLevel)
		}
		pfxlog.GlobalInit(level, pfxlog.DefaultOptions().SetTrimPrefix("github.com/openziti/"))
		return nil
	},
}

var rootOptions = &RootOptions{}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", transport.Detail(err))
		os.Exit(1)
	}
}

// RootOptions holds the global flags. Flags win over STORELAB_* variables,
// which win over the config file.
type RootOptions struct {
	ConfigPath string
	ServerURL  string
	Output     string
	LogLevel   string
	Timeout    time.Duration
}

func (o *RootOptions) Config() (*model.StorelabConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "unable to load .env")
	}

	path := o.ConfigPath
	if path == "" {
		if dir, err := model.ConfigDir(); err == nil {
			path = filepath.Join(dir, model.ConfigFileName)
		}
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if o.ServerURL != "" {
		cfg.ServerURL = o.ServerURL
	}
	if o.Output != "" {
		cfg.OutputFormat = o.Output
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Timeout > 0 {
		cfg.RequestTimeout = o.Timeout
	}
	return cfg, nil
}

func (o *RootOptions) Client() (transport.Client, *model.StorelabConfig, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, nil, err
	}
	return transport.NewHTTPClient(cfg.ServerURL, cfg.EffectiveTimeout()), cfg, nil
}

// Session builds a session over a fresh client. Callers own Close.
func (o *RootOptions) Session() (*session.Session, *model.StorelabConfig, error) {
	client, cfg, err := o.Client()
	if err != nil {
		return nil, nil, err
	}
	return session.New(client, session.OptionsFromConfig(cfg)), cfg, nil
}

// Print renders data with the configured formatter.
func (o *RootOptions) Print(w io.Writer, cfg *model.StorelabConfig, data any) error {
	formatter, err := output.NewFormatter(cfg.OutputFormat, output.TerminalWidth(w))
	if err != nil {
		return err
	}
	out, err := formatter.Format(data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// attachMetrics starts the influx sink when configured; the returned func
// flushes and closes it.
func attachMetrics(s *session.Session, cfg *model.StorelabConfig) (func(), error) {
	if !cfg.Metrics.Influx.Enabled() {
		return func() {}, nil
	}
	sink := metrics.NewInfluxSink(cfg.Metrics.Influx, cfg.ServerURL)
	if err := sink.Attach(s); err != nil {
		sink.Close()
		return nil, err
	}
	pfxlog.Logger().Infof("exporting store metrics to %s", cfg.Metrics.Influx.Url)
	return sink.Close, nil
}
