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
	"github.com/openziti/storelab/kernel/output"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewAuditCommand())
}

func NewAuditCommand() *cobra.Command {
	auditCmd := &AuditCommand{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events, newest first",
		Args:  cobra.NoArgs,
		RunE:  auditCmd.run,
	}
	cmd.Flags().IntVarP(&auditCmd.Limit, "limit", "n", 0, "maximum number of events (default from config)")
	return cmd
}

type AuditCommand struct {
	Limit int
}

func (a *AuditCommand) run(cmd *cobra.Command, args []string) error {
	client, cfg, err := rootOptions.Client()
	if err != nil {
		return err
	}
	limit := a.Limit
	if limit < 0 {
		return errors.Errorf("limit must be positive, got %d", limit)
	}
	if limit == 0 {
		limit = cfg.AuditLimit
	}
	events, err := client.ListAuditEvents(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return rootOptions.Print(cmd.OutOrStdout(), cfg, output.AuditList{Events: events})
}
