package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local account and print its identity keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vp.GetString("user") == "" || vp.GetString("device") == "" {
				return errors.New("--user and --device are required")
			}
			o, err := openFacade()
			if err != nil {
				return err
			}
			n, err := cmd.Flags().GetInt("one-time-keys")
			if err != nil {
				return err
			}
			if n > 0 {
				if err := o.GenerateOneTimeKeys(n); err != nil {
					return errors.Wrap(err, "generating one-time keys")
				}
			}

			fmt.Printf("account ready for %s/%s\n", o.UserID, o.DeviceID)
			for algo, key := range o.IdentityKeys() {
				fmt.Printf("  %s: %s\n", algo, key)
			}
			if n > 0 {
				fmt.Printf("  one-time keys pending upload: %d\n", len(o.Account.OneTimeKeys()))
			}
			return nil
		},
	}
	cmd.Flags().Int("one-time-keys", 0, "also generate this many one-time keys")
	return cmd
}
