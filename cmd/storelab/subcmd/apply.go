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
	"os"

	"github.com/openziti/storelab/kernel/engine"
	"github.com/openziti/storelab/kernel/loader"
	"github.com/openziti/storelab/kernel/output"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewApplyCommand())
}

func NewApplyCommand() *cobra.Command {
	applyCmd := &ApplyCommand{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create (and optionally prune) stores to match a YAML manifest",
		Args:  cobra.NoArgs,
		RunE:  applyCmd.apply,
	}

	cmd.Flags().StringVarP(&applyCmd.ManifestPath, "config", "c", "", "path to YAML store manifest")
	cmd.Flags().BoolVar(&applyCmd.DryRun, "dry-run", false, "show the plan without applying it")
	cmd.Flags().BoolVar(&applyCmd.Prune, "prune", false, "delete stores that are not in the manifest")
	cmd.MarkFlagRequired("config")

	return cmd
}

type ApplyCommand struct {
	ManifestPath string
	DryRun       bool
	Prune        bool
}

func (a *ApplyCommand) apply(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(a.ManifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	validation, err := loader.ValidateManifestBytes(data)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	for _, w := range validation.Warnings {
		logrus.Warnf("manifest: %s", w)
	}
	m, err := loader.ParseManifest(data)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	s, cfg, err := rootOptions.Session()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := loadStores(ctx, s); err != nil {
		return err
	}
	current, _ := s.Stores()
	plan := engine.ComputePlan(m, current, a.Prune)
	for _, c := range plan.Conflicts {
		logrus.Warnf("store [%s] exists as %s; types cannot be changed", c.Name, c.Type)
	}

	if err := rootOptions.Print(cmd.OutOrStdout(), cfg, output.Plan{Plan: plan}); err != nil {
		return err
	}
	if a.DryRun {
		logrus.Infof("dry-run: %d to create, %d to delete, %d unchanged", len(plan.ToCreate), len(plan.ToDelete), len(plan.Unchanged))
		return nil
	}
	if plan.Empty() {
		logrus.Info("apply: nothing to do")
		return nil
	}

	result, err := engine.NewReconciler(s.Coordinator).Apply(ctx, plan)
	if result != nil {
		logrus.Infof("apply: created: %d, deleted: %d, unchanged: %d, failed: %d",
			result.Created, result.Deleted, result.Unchanged, result.Failed)
	}
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	return nil
}
