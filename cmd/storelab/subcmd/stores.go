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
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openziti/storelab/kernel/engine"
	"github.com/openziti/storelab/kernel/model"
	"github.com/openziti/storelab/kernel/output"
	"github.com/openziti/storelab/kernel/session"
	"github.com/openziti/storelab/kernel/transport"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	RootCmd.AddCommand(NewStoresCommand())
}

func NewStoresCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stores",
		Aliases: []string{"store"},
		Short:   "List, create and delete stores",
	}
	cmd.AddCommand(newStoresListCommand())
	cmd.AddCommand(newStoresCreateCommand())
	cmd.AddCommand(newStoresDeleteCommand())
	cmd.AddCommand(newStoresCredentialsCommand())
	return cmd
}

type StoresListCommand struct {
	Audit bool
}

func newStoresListCommand() *cobra.Command {
	listCmd := &StoresListCommand{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stores",
		Args:    cobra.NoArgs,
		RunE:    listCmd.run,
	}
	cmd.Flags().BoolVar(&listCmd.Audit, "audit", false, "also show recent audit events")
	return cmd
}

func (l *StoresListCommand) run(cmd *cobra.Command, args []string) error {
	client, cfg, err := rootOptions.Client()
	if err != nil {
		return err
	}

	var stores []model.Store
	var events []model.AuditEvent
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		var err error
		stores, err = client.ListStores(ctx)
		return err
	})
	if l.Audit {
		g.Go(func() error {
			var err error
			events, err = client.ListAuditEvents(ctx, cfg.AuditLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tracker := engine.NewElapsedTracker(engine.SystemClock{})
	defer tracker.Close()
	tracker.Reconcile(stores)

	if err := rootOptions.Print(cmd.OutOrStdout(), cfg, output.StoreList{Stores: stores, Elapsed: tracker.Display}); err != nil {
		return err
	}
	if l.Audit {
		fmt.Fprintln(cmd.OutOrStdout())
		return rootOptions.Print(cmd.OutOrStdout(), cfg, output.AuditList{Events: events})
	}
	return nil
}

type StoresCreateCommand struct {
	Type        string
	Wait        bool
	WaitTimeout time.Duration
}

func newStoresCreateCommand() *cobra.Command {
	createCmd := &StoresCreateCommand{}
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a store; the name is lowercased and stripped to a-z 0-9 -",
		Args:  cobra.ExactArgs(1),
		RunE:  createCmd.run,
	}
	cmd.Flags().StringVarP(&createCmd.Type, "type", "t", string(model.TypeWooCommerce), "store type (woocommerce or medusa)")
	cmd.Flags().BoolVar(&createCmd.Wait, "wait", false, "wait until the store leaves PROVISIONING")
	cmd.Flags().DurationVar(&createCmd.WaitTimeout, "wait-timeout", 10*time.Minute, "maximum time to wait with --wait")
	return cmd
}

func (c *StoresCreateCommand) run(cmd *cobra.Command, args []string) error {
	s, cfg, err := rootOptions.Session()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	m := s.Coordinator.Create(ctx, args[0], model.StoreType(c.Type))
	if err := m.Wait(ctx); err != nil {
		return err
	}
	store := m.Result().(*model.Store)
	logrus.Infof("store [%s] created (%s)", store.Name, store.Id)

	if c.Wait {
		waitCtx, cancel := context.WithTimeout(ctx, c.WaitTimeout)
		defer cancel()
		final, err := s.WaitForStatus(waitCtx, store.Id, model.StatusProvisioning)
		if err != nil {
			return errors.Wrapf(err, "store [%s] did not finish provisioning", store.Name)
		}
		store = &final
		if store.Status == model.StatusFailed {
			logrus.Errorf("provisioning of [%s] failed: %s", store.Name, store.StatusMessage)
		}
	}
	return rootOptions.Print(cmd.OutOrStdout(), cfg, output.StoreList{Stores: []model.Store{*store}, Elapsed: s.Elapsed.Display})
}

type StoresDeleteCommand struct {
	Yes    bool
	DryRun bool
}

func newStoresDeleteCommand() *cobra.Command {
	deleteCmd := &StoresDeleteCommand{}
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a store and all of its data",
		Args:    cobra.ExactArgs(1),
		RunE:    deleteCmd.run,
	}
	cmd.Flags().BoolVarP(&deleteCmd.Yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&deleteCmd.DryRun, "dry-run", false, "show what would be deleted")
	return cmd
}

func (d *StoresDeleteCommand) run(cmd *cobra.Command, args []string) error {
	s, _, err := rootOptions.Session()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	id := args[0]
	if err := loadStores(ctx, s); err != nil {
		return err
	}
	store, found := s.Store(id)
	if !found {
		return &transport.Error{Category: transport.CategoryNotFound, Op: "delete store", Detail: fmt.Sprintf("Store '%s' not found", id)}
	}

	out := cmd.OutOrStdout()
	if d.DryRun {
		fmt.Fprintf(out, "would delete store '%s' (%s)\n", store.Name, store.Id)
		return nil
	}
	if !d.Yes {
		fmt.Fprintf(out, "Delete store '%s' and all of its data? [y/N]: ", store.Name)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(out, "aborted")
			return nil
		}
	}

	if err := s.Coordinator.Delete(ctx, id).Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "store '%s' deleted\n", store.Name)
	return nil
}

type StoresCredentialsCommand struct {
	Reveal bool
}

func newStoresCredentialsCommand() *cobra.Command {
	credsCmd := &StoresCredentialsCommand{}
	cmd := &cobra.Command{
		Use:     "credentials <id>",
		Aliases: []string{"creds"},
		Short:   "Show the admin credentials of a READY WooCommerce store",
		Args:    cobra.ExactArgs(1),
		RunE:    credsCmd.run,
	}
	cmd.Flags().BoolVar(&credsCmd.Reveal, "reveal", false, "print the password instead of a mask")
	return cmd
}

func (c *StoresCredentialsCommand) run(cmd *cobra.Command, args []string) error {
	s, cfg, err := rootOptions.Session()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := loadStores(ctx, s); err != nil {
		return err
	}
	view := s.Coordinator.NewCredentialsView()
	defer view.Close()
	if err := view.Open(ctx, args[0]).Wait(ctx); err != nil {
		return err
	}
	current := view.Current()
	if current.Credentials == nil {
		return errors.Errorf("credentials for [%s] are no longer available", args[0])
	}
	return rootOptions.Print(cmd.OutOrStdout(), cfg, output.Credentials{Credentials: *current.Credentials, Reveal: c.Reveal})
}

// loadStores fills the session cache, surfacing a failed fetch as an error.
func loadStores(ctx context.Context, s *session.Session) error {
	if _, err := s.Cache.Refresh(ctx, s.StoresQuery()); err != nil {
		return err
	}
	_, snap := s.Stores()
	return snap.Err
}
