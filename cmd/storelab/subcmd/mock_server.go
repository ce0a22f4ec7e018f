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
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openziti/storelab/kernel/server"
	"github.com/openziti/storelab/kernel/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewMockServerCommand())
}

func NewMockServerCommand() *cobra.Command {
	mockCmd := &MockServerCommand{Options: server.DefaultOptions()}

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local orchestrator that simulates store provisioning",
		Args:  cobra.NoArgs,
		RunE:  mockCmd.run,
	}

	cmd.Flags().StringVar(&mockCmd.Listen, "listen", ":8000", "listen address")
	cmd.Flags().DurationVar(&mockCmd.Options.ProvisionDelay, "provision-delay", mockCmd.Options.ProvisionDelay, "time until a new store becomes READY")
	cmd.Flags().IntVar(&mockCmd.Options.MaxStores, "max-stores", mockCmd.Options.MaxStores, "maximum number of stores")
	cmd.Flags().StringVar(&mockCmd.DataFile, "data-file", "", "persist state to this JSON file (default in-memory)")

	return cmd
}

type MockServerCommand struct {
	Listen   string
	DataFile string
	Options  server.Options
}

func (m *MockServerCommand) run(cmd *cobra.Command, args []string) error {
	var state store.AuditStore
	if m.DataFile != "" {
		logrus.Infof("persisting state to %s", m.DataFile)
		state = store.NewFileStore(m.DataFile)
	} else {
		state = store.NewMemoryStore()
	}

	srv := server.NewServer(server.Config{
		Listen:       m.Listen,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, server.NewBackend(state, m.Options))

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errs
}
