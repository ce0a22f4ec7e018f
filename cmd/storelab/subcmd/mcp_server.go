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
	"github.com/openziti/storelab/kernel/mcp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewMCPServerCommand())
}

func NewMCPServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start MCP server for AI-driven store management",
		Long: `Start an MCP (Model Context Protocol) server on stdio that exposes
store management to AI assistants.

The server provides tools for:
  - list_stores: List stores with status and provisioning time
  - create_store: Create a store
  - delete_store: Delete a store
  - get_admin_credentials: Fetch admin credentials of a READY store
  - list_audit_events: Recent audit events
  - apply_manifest: Apply a YAML store manifest

And resources:
  - storelab://status: Store counts by status`,
		Args: cobra.NoArgs,
		RunE: runMCPServer,
	}
	return cmd
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	s, cfg, err := rootOptions.Session()
	if err != nil {
		return err
	}
	defer s.Close()

	closeMetrics, err := attachMetrics(s, cfg)
	if err != nil {
		return err
	}
	defer closeMetrics()

	s.Start()
	logrus.Infof("starting MCP server on stdio for %s...", cfg.ServerURL)
	return mcp.NewStorelabMCPServer(s).ServeStdio()
}
