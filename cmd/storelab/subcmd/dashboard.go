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
	"github.com/openziti/storelab/kernel/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(NewDashboardCommand())
}

func NewDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Live terminal dashboard of stores and activity",
		Args:    cobra.NoArgs,
		RunE:    runDashboard,
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
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

	// logs would tear the alternate screen
	logrus.SetLevel(logrus.ErrorLevel)
	s.Start()
	return tui.Run(s, cfg.ServerURL)
}
